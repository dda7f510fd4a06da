package withdrawal

import "casino/models"

var allowed = map[string][]string{
	models.WithdrawalPending:    {models.WithdrawalApproved, models.WithdrawalRejected, models.WithdrawalFailed},
	models.WithdrawalApproved:   {models.WithdrawalProcessing, models.WithdrawalPaid, models.WithdrawalFailed},
	models.WithdrawalProcessing: {models.WithdrawalPaid, models.WithdrawalFailed},
}

// CanTransition reports whether an admin may move a withdrawal from -> to
// without an override.
func CanTransition(from, to string) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s string) bool {
	switch s {
	case models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalRejected,
		models.WithdrawalProcessing, models.WithdrawalPaid, models.WithdrawalFailed:
		return true
	}
	return false
}

func refunds(status string) bool {
	return status == models.WithdrawalRejected || status == models.WithdrawalFailed
}
