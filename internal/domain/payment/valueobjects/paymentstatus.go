package valueobjects

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) IsSucceeded() bool {
	return s == PaymentStatusSucceeded
}

func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

func (s PaymentStatus) String() string {
	return string(s)
}
