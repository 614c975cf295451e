package game

// payout tiers along the consecutive win streak
const (
	FirstWinAmount  int64 = 10 // 1st consecutive win
	SecondWinAmount int64 = 20 // 2nd consecutive win
	StreakWinAmount int64 = 50 // 3rd consecutive win and beyond
)

// Payout computes the prize and the new streak for a judged round.
// A loss always resets the streak.
func Payout(isWinner bool, streak int) (winAmount int64, newStreak int) {
	if !isWinner {
		return 0, 0
	}
	if streak < 0 {
		streak = 0
	}

	newStreak = streak + 1
	switch newStreak {
	case 1:
		winAmount = FirstWinAmount
	case 2:
		winAmount = SecondWinAmount
	default:
		winAmount = StreakWinAmount
	}
	return winAmount, newStreak
}

// PayoutTable describes the schedule for the info endpoint
func PayoutTable() []map[string]interface{} {
	return []map[string]interface{}{
		{"streak": 1, "win_amount": FirstWinAmount},
		{"streak": 2, "win_amount": SecondWinAmount},
		{"streak": "3+", "win_amount": StreakWinAmount},
	}
}
