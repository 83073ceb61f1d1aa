// README: Provider profile used for display and FCM token resolution.
package provider

import (
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type Provider struct {
	ID          types.ID
	Name        string
	Category    string
	Phone       string
	Rating      float64
	RatingCount int
	DeviceToken string
	CreatedAt   time.Time
}
