package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// carriers are picked at random for demo orders.
var carriers = []string{"UPS", "FedEx", "USPS", "DHL"}

// shipment is the synthesized shipping metadata of a demo order.
type shipment struct {
	carrier           string
	trackingNumber    string
	estimatedDelivery string
	status            string
}

// newShipment picks a carrier with pick (returns [0,n)) and synthesizes a
// tracking number in that carrier's format.
func newShipment(today time.Time, deliveryDays int, pick func(n int) int) shipment {
	carrier := carriers[pick(len(carriers))]
	return shipment{
		carrier:           carrier,
		trackingNumber:    trackingNumber(carrier, uuid.New()),
		estimatedDelivery: today.AddDate(0, 0, deliveryDays).Format(dateLayout),
		status:            ShippingProcessing,
	}
}

// trackingNumber formats id the way carrier's numbers look.
func trackingNumber(carrier string, id uuid.UUID) string {
	switch carrier {
	case "UPS":
		hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
		return "1Z" + hex[:16]
	case "FedEx":
		return digits(id, 12)
	case "USPS":
		return "94" + digits(id, 20)
	default:
		return digits(id, 10)
	}
}

// digits maps the bytes of id to n decimal digits, wrapping as needed.
func digits(id uuid.UUID, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte('0' + id[i%len(id)]%10)
	}
	return b.String()
}
