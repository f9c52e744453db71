package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	TicketID string `json:"ticketId" validate:"required"`
	Key      string `json:"idempotencyKey" validate:"max=4"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		in        any
		wantField string
		wantMsg   string
	}{
		{name: "valid", in: &frame{TicketID: "t1", Key: "k1"}},
		{name: "missing ticket", in: &frame{}, wantField: "ticketId", wantMsg: "ticketId is required"},
		{name: "key too long", in: frame{TicketID: "t1", Key: "12345"}, wantField: "idempotencyKey", wantMsg: "idempotencyKey must be at most 4 characters"},
		{name: "not a struct", in: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.Equal(t, tt.wantMsg, fe.Message)
		})
	}
}
