package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredential_CounterPermits(t *testing.T) {
	tests := []struct {
		name   string
		stored uint32
		new    uint32
		want   bool
	}{
		{"both zero, counter unsupported", 0, 0, true},
		{"first increase from zero", 0, 1, true},
		{"normal increase", 5, 6, true},
		{"large jump", 5, 1000, true},
		{"equal non-zero", 5, 5, true},
		{"regression", 5, 4, false},
		{"reset to zero after non-zero", 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &Credential{SignCount: tt.stored}
			assert.Equal(t, tt.want, cred.CounterPermits(tt.new))
		})
	}
}

func TestCredential_EncodedID(t *testing.T) {
	id := []byte{0x01, 0x02, 0xff, 0xfe}
	cred := &Credential{CredentialID: id}

	decoded, err := base64.RawURLEncoding.DecodeString(cred.EncodedID())
	assert.NoError(t, err)
	assert.Equal(t, id, decoded)
}
