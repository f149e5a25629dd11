package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
)

// ErrInsufficientFeedback reports that the SISO feedback map holds fewer
// distinct combinations than an nTx x nRx stream assignment requires. The
// shortlist is never padded or truncated silently.
var ErrInsufficientFeedback = errors.New("insufficient SISO feedback for requested stream count")

// SisoCandidate is one shortlisted entry of the K-best selection: a measured
// feedback key together with its representative SNR.
type SisoCandidate struct {
	Key SisoFeedbackKey
	Snr float64
}

// SelectKBest returns the k highest-SNR combinations from the SISO feedback
// map, in SNR-descending order. Ties break by lowest txSector id, then
// lowest txAntenna id, so repeated runs over the same channel trace produce
// identical shortlists.
//
// The output is always a subset of the input domain. If the feedback map
// holds fewer distinct combinations than needed to populate an nTx x nRx
// assignment, SelectKBest returns ErrInsufficientFeedback.
func SelectKBest(feedback SisoFeedback, k, nTx, nRx int) ([]SisoCandidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if nTx <= 0 || nRx <= 0 {
		return nil, fmt.Errorf("stream counts must be positive, got nTx=%d nRx=%d", nTx, nRx)
	}
	if len(feedback) < nTx*nRx {
		return nil, fmt.Errorf("%w: have %d combinations, need %d (nTx=%d, nRx=%d)",
			ErrInsufficientFeedback, len(feedback), nTx*nRx, nTx, nRx)
	}

	candidates := make([]SisoCandidate, 0, len(feedback))
	for key, snr := range feedback {
		candidates = append(candidates, SisoCandidate{Key: key, Snr: snr})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Snr != b.Snr {
			return a.Snr > b.Snr
		}
		if a.Key.TxSector != b.Key.TxSector {
			return a.Key.TxSector < b.Key.TxSector
		}
		return a.Key.TxAntenna < b.Key.TxAntenna
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// CandidateSectorLists groups a shortlist into the per-TX-antenna sector
// lists handed to the MIMO evaluation request. Sector order within an
// antenna follows shortlist order (best first); duplicates are collapsed.
func CandidateSectorLists(shortlist []SisoCandidate) Antenna2Sectors {
	lists := make(Antenna2Sectors)
	seen := make(map[StreamConfig]bool)
	for _, c := range shortlist {
		entry := StreamConfig{Antenna: c.Key.TxAntenna, Sector: c.Key.TxSector}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		lists[c.Key.TxAntenna] = append(lists[c.Key.TxAntenna], c.Key.TxSector)
	}
	return lists
}

// candidateHeap is a max-heap of RankedCandidate keyed by MinStreamSnr,
// following the container/heap pattern of the event queue.
type candidateHeap []RankedCandidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].MinStreamSnr > h[j].MinStreamSnr }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(RankedCandidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// RankedCandidates is a priority structure over MIMO measurements ordered
// by worst-stream SNR, so the best, second-best, ... combinations can be
// extracted in decreasing order without a full sort when only a prefix is
// needed.
type RankedCandidates struct {
	h candidateHeap
}

// RankByMinStreamSnr scores each tested multi-stream combination by its
// weakest stream (aggregate throughput of a spatial-multiplexing link is
// bottlenecked by the weakest stream) and returns a max-heap over that
// metric. The input slice is not modified. Zero and negative per-stream
// ratios are retained: a legitimately poor configuration is still rankable.
func RankByMinStreamSnr(measurements []MimoMeasurement) *RankedCandidates {
	rc := &RankedCandidates{h: make(candidateHeap, 0, len(measurements))}
	for _, m := range measurements {
		if len(m.PerStreamSnr) == 0 {
			continue
		}
		min := m.PerStreamSnr[0]
		for _, snr := range m.PerStreamSnr[1:] {
			if snr < min {
				min = snr
			}
		}
		rc.h = append(rc.h, RankedCandidate{
			TxAwvID:      m.TxAwvID,
			RxAwvID:      m.RxAwvID,
			SnrMatrix:    m.SnrMatrix,
			PerStreamSnr: m.PerStreamSnr,
			MinStreamSnr: min,
		})
	}
	heap.Init(&rc.h)
	return rc
}

// Len returns the number of candidates still in the heap.
func (rc *RankedCandidates) Len() int {
	return rc.h.Len()
}

// PopBest removes and returns the candidate with the highest MinStreamSnr.
// ok is false once the heap is empty.
func (rc *RankedCandidates) PopBest() (RankedCandidate, bool) {
	if rc.h.Len() == 0 {
		return RankedCandidate{}, false
	}
	return heap.Pop(&rc.h).(RankedCandidate), true
}

// Drain consumes the heap and returns a fresh slice non-increasing in
// MinStreamSnr. Equal keys may appear in any relative order.
func (rc *RankedCandidates) Drain() []RankedCandidate {
	out := make([]RankedCandidate, 0, rc.h.Len())
	for {
		c, ok := rc.PopBest()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}
