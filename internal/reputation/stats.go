package reputation

import (
	"math"
	"sort"

	"github.com/sawpanic/calltrack/internal/model"
)

const (
	winnerATHThreshold = 2.0
	epsilon            = 1e-6
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func meanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(values)))
	return mean, stddev
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// ChannelReputation recomputes a channel's aggregate reputation from its
// completed signals, using the engine's current TD state for expected_roi
// and the channel's accumulated prediction history for MAE (spec.md §4.F).
// It also refreshes the dirty-invalidated cache.
func (e *Engine) ChannelReputation(channel string, completed []model.SignalOutcome) *model.ChannelReputation {
	e.cacheMu.Lock()
	cached, exists := e.reputationCache[channel]
	isDirty := e.dirty[channel]
	e.cacheMu.Unlock()

	if exists && !isDirty {
		return cached
	}

	rep := e.recompute(channel, completed)

	e.cacheMu.Lock()
	e.reputationCache[channel] = rep
	e.dirty[channel] = false
	e.cacheMu.Unlock()

	return rep
}

func (e *Engine) recompute(channel string, completed []model.SignalOutcome) *model.ChannelReputation {
	rep := &model.ChannelReputation{Channel: channel, CoinStats: map[string]*model.CoinStat{}}

	total := len(completed)
	rep.TotalSignals = total
	if total == 0 {
		rep.ReputationTier = "Unreliable"
		return rep
	}

	rois := make([]float64, 0, total)
	var winners, earlyCount, lateCount, crashedCount int
	var totalDaysToATH float64

	coinROIs := map[string][]float64{}
	coinLastMention := map[string]model.SignalOutcome{}

	for _, sig := range completed {
		ath := sig.ATHMultiplier()
		rois = append(rois, ath)
		if ath >= winnerATHThreshold {
			winners++
		}
		totalDaysToATH += sig.DaysToATH
		if sig.PeakTiming == model.PeakEarly {
			earlyCount++
		} else if sig.PeakTiming == model.PeakLate {
			lateCount++
		}
		if sig.Trajectory == model.TrajectoryCrashed {
			crashedCount++
		}

		tokenKey := sig.TokenRef.TokenKey()
		coinROIs[tokenKey] = append(coinROIs[tokenKey], ath)
		if existing, ok := coinLastMention[tokenKey]; !ok || sig.EntryTime.After(existing.EntryTime) {
			coinLastMention[tokenKey] = sig
		}
	}

	avgROI, roiStdDev := meanStdDev(rois)
	rep.AvgROI = avgROI
	rep.ROIStdDev = roiStdDev
	rep.MedianROI = median(rois)
	rep.BestROI, rep.WorstROI = maxMin(rois)
	rep.Winners = winners
	rep.WinRate = float64(winners) / float64(total)
	rep.SharpeLikeRatio = (avgROI - 1.0) / math.Max(roiStdDev, epsilon)
	rep.AvgDaysToATH = totalDaysToATH / float64(total)

	speedScore := clamp((14-rep.AvgDaysToATH)/14, 0, 1) * 100
	confidenceScore := clamp(float64(total)/20, 0, 1) * 100

	rep.EarlyPeakerPct = float64(earlyCount) / float64(total) * 100
	rep.LatePeakerPct = float64(lateCount) / float64(total) * 100
	rep.CrashRatePostDay7 = float64(crashedCount) / float64(total)

	switch {
	case rep.EarlyPeakerPct >= 70:
		rep.RecommendedHoldPeriod = "exit_early (1-7 d)"
	case rep.LatePeakerPct >= 70:
		rep.RecommendedHoldPeriod = "hold_longer (7-30 d)"
	default:
		rep.RecommendedHoldPeriod = "mixed"
	}

	term1 := rep.WinRate * 30
	term2 := clamp((avgROI-1)*100*0.25, 0, 25)
	term3 := clamp(rep.SharpeLikeRatio*10*0.20, 0, 20)
	term4 := speedScore * 0.15
	term5 := confidenceScore * 0.10
	score := clamp(term1+term2+term3+term4+term5, 0, 100)
	rep.ReputationScore = score

	if total < 5 {
		rep.ReputationTier = "Unreliable"
	} else {
		rep.ReputationTier = tierFor(score)
	}

	e.mu.Lock()
	if st, ok := e.overall[channel]; ok {
		rep.ExpectedROI = st.value
	}
	e.mu.Unlock()

	e.cacheMu.Lock()
	history := append([]model.PredictionRecord{}, e.predictionHistory[channel]...)
	e.cacheMu.Unlock()
	rep.PredictionHistory = history
	rep.PredictionCount = len(history)
	rep.MAE = meanAbsoluteError(history)

	for tokenKey, list := range coinROIs {
		avg, _ := meanStdDev(list)
		last := coinLastMention[tokenKey]
		rep.CoinStats[tokenKey] = &model.CoinStat{
			Mentions:      len(list),
			AvgROI:        avg,
			ExpectedROI:   e.Predict(channel, tokenKey, ""),
			LastMentioned: last.EntryTime,
		}
	}

	return rep
}

func tierFor(score float64) string {
	switch {
	case score >= 90:
		return "Elite"
	case score >= 75:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Average"
	case score >= 20:
		return "Poor"
	default:
		return "Unreliable"
	}
}

func maxMin(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return max, min
}

func meanAbsoluteError(history []model.PredictionRecord) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, r := range history {
		sum += math.Abs(r.Predicted - r.Actual)
	}
	return sum / float64(len(history))
}
