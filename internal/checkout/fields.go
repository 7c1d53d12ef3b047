package checkout

// CRM objects written by the saga.
const (
	objectContact        = "Contact"
	objectOrder          = "Order"
	objectOrderItem      = "OrderItem"
	objectPricebookEntry = "PricebookEntry"
	objectLoyaltyLedger  = "LoyaltyLedger"
)

// Order status values.
const (
	StatusDraft     = "Draft"
	StatusActivated = "Activated"
)

// Custom order fields carrying demo shipping metadata.
const (
	fieldCarrier           = "Carrier__c"
	fieldTrackingNumber    = "Tracking_Number__c"
	fieldEstimatedDelivery = "Estimated_Delivery__c"
	fieldShippingStatus    = "Shipping_Status__c"
	fieldPaymentMethod     = "Payment_Method__c"
)

// Shipping statuses.
const (
	ShippingProcessing = "Processing"
	ShippingShipped    = "Shipped"
)

const dateLayout = "2006-01-02"
