package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want bool
	}{
		{"uncontacted", Lead{}, false},
		{"negotiating", Lead{Status: StatusNegotiating}, false},
		{"ordered", Lead{Status: StatusOrdered}, true},
		{"opt-out", Lead{Status: StatusOptOut}, true},
		{"design ready awaiting payment", Lead{Status: StatusDesignReady, PaymentStatus: PaymentPending}, false},
		{"payment done ends the pipeline", Lead{Status: StatusDesignReady, PaymentStatus: PaymentDone}, true},
		{"delivered with payment done", Lead{Status: StatusDelivered, PaymentStatus: PaymentDone}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lead.Terminal())
		})
	}
}

func TestOwnedBy(t *testing.T) {
	l := Lead{Owner: " Sender@Studio.com "}

	assert.True(t, l.OwnedBy("sender@studio.com"))
	assert.True(t, l.OwnedBy("SENDER@STUDIO.COM "))
	assert.False(t, l.OwnedBy("other@studio.com"))
	assert.False(t, Lead{}.OwnedBy("sender@studio.com"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "alice@shop.com", NormalizeAddress("  Alice@Shop.COM "))
	assert.Equal(t, "", NormalizeAddress("   "))
}
