// Fairness scorer: post-hoc analytics over completed allocations. Ranks GPU
// owners by review ratings discounted by dispute frequency. Read-only batch
// computation, runs off the allocation hot path, recomputed on demand.

package fairness

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// disputePenalty: Scales dispute rate onto the 0-5 rating range, so a 100%
// dispute rate cancels a perfect rating.
const disputePenalty = 5.0

// Scorer: Computes owner fairness rankings from allocation history
type Scorer struct {
	history store.HistoryStore
	log     *logger.Logger
}

// NewScorer: Create a scorer over the given history provider
func NewScorer(st store.Store) *Scorer {
	return &Scorer{
		history: st,
		log:     logger.Get(),
	}
}

// ComputeScores: Fairness ranking for every owner with at least one GPU.
//
//	avg_rating   = mean rating across reviews on the owner's bookings (0 if none)
//	dispute_rate = disputes on those bookings / total bookings (0 if none)
//	score        = avg_rating − 5 × dispute_rate
//
// Sorted descending by score. Owners with zero bookings score 0 without
// division errors.
func (fs *Scorer) ComputeScores(ctx context.Context) ([]*common.OwnerScore, error) {
	gpus, err := fs.history.ListGPUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list GPUs: %w", err)
	}
	bookings, err := fs.history.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	reviews, err := fs.history.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	disputes, err := fs.history.ListDisputes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}

	// Owner of each GPU, and owners with at least one listing
	gpuOwner := make(map[string]string, len(gpus))
	owners := make(map[string]bool)
	for _, gpu := range gpus {
		if gpu.OwnerID == "" {
			continue
		}
		gpuOwner[gpu.ID] = gpu.OwnerID
		owners[gpu.OwnerID] = true
	}

	// Reviews and disputes indexed by booking
	reviewsByBooking := make(map[string][]*common.Review)
	for _, review := range reviews {
		reviewsByBooking[review.BookingID] = append(reviewsByBooking[review.BookingID], review)
	}
	disputesByBooking := make(map[string]int)
	for _, dispute := range disputes {
		disputesByBooking[dispute.BookingID]++
	}

	// Aggregate per owner over that owner's bookings
	type ownerStats struct {
		bookings    int
		disputes    int
		ratingSum   float64
		ratingCount int
	}
	stats := make(map[string]*ownerStats)
	for owner := range owners {
		stats[owner] = &ownerStats{}
	}

	for _, booking := range bookings {
		owner, ok := gpuOwner[booking.GPUID]
		if !ok {
			continue
		}
		st := stats[owner]
		st.bookings++
		st.disputes += disputesByBooking[booking.ID]
		for _, review := range reviewsByBooking[booking.ID] {
			st.ratingSum += review.Rating
			st.ratingCount++
		}
	}

	result := make([]*common.OwnerScore, 0, len(stats))
	for owner, st := range stats {
		avgRating := 0.0
		if st.ratingCount > 0 {
			avgRating = st.ratingSum / float64(st.ratingCount)
		}
		disputeRate := 0.0
		if st.bookings > 0 {
			disputeRate = float64(st.disputes) / float64(st.bookings)
		}
		score := avgRating - disputeRate*disputePenalty

		result = append(result, &common.OwnerScore{
			OwnerID:     owner,
			Score:       round2(score),
			AvgRating:   round2(avgRating),
			DisputeRate: round2(disputeRate),
			Bookings:    st.bookings,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})

	fs.log.Debug("Computed fairness scores for %d owners", len(result))
	return result, nil
}

// round2: Two-decimal precision on reported fields
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
