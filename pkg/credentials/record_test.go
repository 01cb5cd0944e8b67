package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	r := Record{}
	assert.False(t, r.IsExpired(now), "no expiry timestamp never expires")

	r = Record{ExpiryTS: now.Unix() - 1}
	assert.True(t, r.IsExpired(now))

	r = Record{ExpiryTS: now.Unix() + 60}
	assert.False(t, r.IsExpired(now))
}

func TestNeedsRotation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	r := Record{LastRotatedTS: 0}
	assert.False(t, r.NeedsRotation(now), "no interval never rotates")

	r = Record{RotationIntervalDays: 1}
	assert.True(t, r.NeedsRotation(now), "interval with no recorded rotation is due")

	r = Record{RotationIntervalDays: 1, LastRotatedTS: now.Unix() - 86400}
	assert.True(t, r.NeedsRotation(now))

	r = Record{RotationIntervalDays: 1, LastRotatedTS: now.Unix() - 3600}
	assert.False(t, r.NeedsRotation(now))
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want Kind
	}{
		{"explicit kind wins", Record{Kind: KindAssumableRole, SecretARN: "arn:sm"}, KindAssumableRole},
		{"secret arn derives static", Record{SecretARN: "arn:sm"}, KindStaticSecret},
		{"role arn derives assumable", Record{RoleARN: "arn:role"}, KindAssumableRole},
		{"secret arn takes priority over role arn", Record{SecretARN: "arn:sm", RoleARN: "arn:role"}, KindStaticSecret},
		{"neither is unmanaged", Record{}, KindUnmanaged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.ResolveKind())
		})
	}
}
