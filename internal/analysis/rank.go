package analysis

import "sort"

type RankedParticipant struct {
	Rank int
	ParticipantSummary
}

// RankByNet orders participants by net position (profit minus cost),
// best first. Equal nets keep their settlement order.
func RankByNet(participants []ParticipantSummary) []RankedParticipant {
	out := make([]RankedParticipant, 0, len(participants))
	for _, p := range participants {
		out = append(out, RankedParticipant{ParticipantSummary: p})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Net.GreaterThan(out[j].Net)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
