package betting

import (
	"testing"

	"parimutuel/service"

	"github.com/stretchr/testify/assert"
)

func TestReceiptMessage(t *testing.T) {
	t.Run("first wager", func(t *testing.T) {
		msg := ReceiptMessage(&service.WagerReceipt{
			ContenderNumber: 2,
			ContenderName:   "Blue",
			Amount:          100,
			MemberTotal:     100,
			NewBalance:      900,
		})
		assert.Equal(t, "Bet 100 points on **#2 Blue**. Balance: 900 points.", msg)
	})

	t.Run("top-up mentions the running total", func(t *testing.T) {
		msg := ReceiptMessage(&service.WagerReceipt{
			ContenderNumber: 1,
			ContenderName:   "Red",
			Amount:          50,
			MemberTotal:     1250,
			NewBalance:      0,
		})
		assert.Contains(t, msg, "Your total on this contender is 1,250 points.")
		assert.Contains(t, msg, "Balance: 0 points.")
	})
}
