package round

import (
	"casino/models"
	"casino/services/settings"
)

// DecideBias is the house-bias rule. favor_house turns win or blackjack into
// lose, favor_player turns lose into win; either applies only when roll falls
// under probability. Push and bust are never changed.
func DecideBias(result, mode string, probability, roll float64) (string, bool) {
	if probability <= 0 || roll >= probability {
		return result, false
	}
	switch mode {
	case settings.BiasFavorHouse:
		if result == models.ResultWin || result == models.ResultBlackjack {
			return models.ResultLose, true
		}
	case settings.BiasFavorPlayer:
		if result == models.ResultLose {
			return models.ResultWin, true
		}
	}
	return result, false
}

func biasActive(mode string, probability float64) bool {
	return probability > 0 && (mode == settings.BiasFavorHouse || mode == settings.BiasFavorPlayer)
}
