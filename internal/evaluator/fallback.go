package evaluator

import (
	"hash/fnv"

	"arebasic/internal/domain"
)

// Fallback derives a verdict from a hash of the round, so the same answer to
// the same prompt always gets the same score while the judge is down.
func Fallback(prompt, answer string, cause error) domain.Verdict {
	score := hashScore("final", prompt, answer)

	diagnostics := map[string]any{
		"final_score":        score,
		"ai_detection_score": hashScore("ai_detection", prompt, answer),
		"coherence_score":    hashScore("coherence", prompt, answer),
	}
	if cause != nil {
		diagnostics["fallback_reason"] = cause.Error()
	}

	return domain.Verdict{
		IsWinner:     score >= domain.WinThreshold,
		Score:        score,
		UsedFallback: true,
		Diagnostics:  diagnostics,
	}
}

// hashScore maps (salt, prompt, answer) onto [0,1)
func hashScore(salt, prompt, answer string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(prompt))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(answer))
	return float64(h.Sum64()>>11) / float64(1<<53)
}
