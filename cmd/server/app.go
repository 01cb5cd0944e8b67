package server

import (
	"net/http"
	"os"
	"syscall"

	"github.com/go-chi/chi"
)

// App is the entrypoint into our application and what configures our
// object for each of our http handlers.
type App struct {
	*chi.Mux
	shutdown chan os.Signal
}

// NewApp creates an App value that handle a set of routes for the application.
func NewApp(shutdown chan os.Signal) *App {
	app := App{
		Mux:      chi.NewRouter(),
		shutdown: shutdown,
	}

	return &app
}

// SignalShutdown is used to gracefully shutdown the app when an integrity
// issue is identified.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Mux.ServeHTTP(w, r)
}
