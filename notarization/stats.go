package notarization

// Stats summarizes a transaction list
type Stats struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Confirming  int     `json:"confirming"`
	Confirmed   int     `json:"confirmed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"` // Percent of all records that are confirmed, 0 when empty
}

// ComputeStats counts txs per status
func ComputeStats(txs []Transaction) Stats {
	s := Stats{Total: len(txs)}
	for _, tx := range txs {
		switch tx.Status {
		case StatusPending:
			s.Pending++
		case StatusConfirming:
			s.Confirming++
		case StatusConfirmed:
			s.Confirmed++
		case StatusFailed:
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Confirmed) / float64(s.Total) * 100
	}
	return s
}
