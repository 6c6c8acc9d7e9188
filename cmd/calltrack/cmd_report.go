package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/calltrack/internal/report"
)

// runReport prints one of spec.md §6's export tables as delimited text.
// CSV/spreadsheet rendering proper stays an external collaborator's job;
// this is the thin text realization the cobra shell adds over
// internal/report's read-model structs.
func runReport(cmd *cobra.Command, args []string) error {
	table, _ := cmd.Flags().GetString("table")
	delimiter, _ := cmd.Flags().GetString("delimiter")
	inputPath, _ := cmd.Flags().GetString("input")

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	builder := report.NewBuilder(eng.store, eng.learning)

	w := csv.NewWriter(os.Stdout)
	if delimiter != "" {
		w.Comma = rune(delimiter[0])
	}
	defer w.Flush()

	switch table {
	case "channel_rankings":
		return writeChannelRankings(w, builder.ChannelRankings())
	case "channel_token_performance":
		return writeChannelTokenPerformance(w, builder.ChannelTokenPerformance())
	case "token_cross_channel":
		return writeTokenCrossChannel(w, builder.TokenCrossChannel())
	case "performance":
		return writePerformance(w, builder.Performance())
	case "messages":
		if inputPath == "" {
			return fmt.Errorf("report --table=messages requires --input (the mentions that produced these rows)")
		}
		mentions, err := loadMentions(inputPath)
		if err != nil {
			return err
		}
		entries := make([]report.MessageEntry, len(mentions))
		for i, m := range mentions {
			entries[i] = report.MessageEntry{Mention: m}
		}
		return writeMessages(w, builder.Messages(entries))
	default:
		return fmt.Errorf("unknown table %q (want one of channel_rankings|channel_token_performance|token_cross_channel|performance|messages)", table)
	}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtPtr(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *p)
}

func writeChannelRankings(w *csv.Writer, rows []report.ChannelRankingRow) error {
	if err := w.Write([]string{"channel", "total_signals", "win_rate", "avg_roi", "median_roi", "best_roi", "worst_roi",
		"expected_roi", "sharpe_like", "speed_score", "reputation_score", "reputation_tier", "prediction_count", "mae",
		"first_signal_date", "last_signal_date", "last_updated"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Channel, fmt.Sprint(r.TotalSignals), fmt.Sprintf("%.4f", r.WinRate),
			fmt.Sprintf("%.4f", r.AvgROI), fmt.Sprintf("%.4f", r.MedianROI), fmt.Sprintf("%.4f", r.BestROI),
			fmt.Sprintf("%.4f", r.WorstROI), fmt.Sprintf("%.4f", r.ExpectedROI), fmt.Sprintf("%.4f", r.SharpeLike),
			fmt.Sprintf("%.4f", r.SpeedScore), fmt.Sprintf("%.2f", r.ReputationScore), r.ReputationTier,
			fmt.Sprint(r.PredictionCount), fmt.Sprintf("%.4f", r.MAE), fmtTime(r.FirstSignalDate),
			fmtTime(r.LastSignalDate), fmtTime(r.LastUpdated)}); err != nil {
			return err
		}
	}
	return nil
}

func writeChannelTokenPerformance(w *csv.Writer, rows []report.ChannelTokenPerformanceRow) error {
	if err := w.Write([]string{"channel", "token_key", "mentions", "avg_roi", "expected_roi", "win_rate", "best_roi",
		"worst_roi", "prediction_accuracy", "last_mentioned", "recommendation"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Channel, r.TokenKey, fmt.Sprint(r.Mentions), fmt.Sprintf("%.4f", r.AvgROI),
			fmt.Sprintf("%.4f", r.ExpectedROI), fmt.Sprintf("%.4f", r.WinRate), fmt.Sprintf("%.4f", r.BestROI),
			fmt.Sprintf("%.4f", r.WorstROI), fmt.Sprintf("%.4f", r.PredictionAccuracy), fmtTime(r.LastMentioned),
			r.Recommendation}); err != nil {
			return err
		}
	}
	return nil
}

func writeTokenCrossChannel(w *csv.Writer, rows []report.TokenCrossChannelRow) error {
	if err := w.Write([]string{"token_key", "total_mentions", "channel_count", "avg_roi", "best_channel",
		"best_channel_roi", "worst_channel", "worst_channel_roi", "consensus_strength"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.TokenKey, fmt.Sprint(r.TotalMentions), fmt.Sprint(r.ChannelCount),
			fmt.Sprintf("%.4f", r.AvgROI), r.BestChannel, fmt.Sprintf("%.4f", r.BestChannelROI), r.WorstChannel,
			fmt.Sprintf("%.4f", r.WorstChannelROI), fmt.Sprintf("%.4f", r.ConsensusStrength)}); err != nil {
			return err
		}
	}
	return nil
}

func writePerformance(w *csv.Writer, rows []report.PerformanceRow) error {
	if err := w.Write([]string{"token_address", "chain", "first_message_id", "entry_price", "entry_time", "ath_price",
		"ath_time", "ath_multiplier", "current_multiplier", "days_tracked", "days_to_ath", "peak_timing",
		"day_7_price", "day_7_multiplier", "day_7_classification", "day_30_price", "day_30_multiplier",
		"day_30_classification", "trajectory", "outcome_category"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.TokenAddress, string(r.Chain), fmt.Sprint(r.FirstMessageID),
			fmt.Sprintf("%.8f", r.EntryPrice), fmtTime(r.EntryTime), fmt.Sprintf("%.8f", r.ATHPrice), fmtTime(r.ATHTime),
			fmt.Sprintf("%.4f", r.ATHMultiplier), fmt.Sprintf("%.4f", r.CurrentMultiplier), fmt.Sprintf("%.2f", r.DaysTracked),
			fmt.Sprintf("%.2f", r.DaysToATH), string(r.PeakTiming), fmtPtr(r.Day7Price), fmtPtr(r.Day7Multiplier),
			string(r.Day7Classification), fmtPtr(r.Day30Price), fmtPtr(r.Day30Multiplier), string(r.Day30Classification),
			string(r.Trajectory), string(r.OutcomeCategory)}); err != nil {
			return err
		}
	}
	return nil
}

func writeMessages(w *csv.Writer, rows []report.MessageRow) error {
	if err := w.Write([]string{"message_id", "timestamp", "channel", "token_address", "token_chain", "token_symbol",
		"channel_reputation_score", "channel_reputation_tier", "channel_expected_roi_overall", "channel_expected_roi_token",
		"channel_win_rate", "prediction_source"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{fmt.Sprint(r.MessageID), fmtTime(r.Timestamp), r.Channel, r.TokenAddress,
			string(r.TokenChain), r.TokenSymbol, fmt.Sprintf("%.2f", r.ChannelReputationScore), r.ChannelReputationTier,
			fmt.Sprintf("%.4f", r.ChannelExpectedROIOverall), fmt.Sprintf("%.4f", r.ChannelExpectedROIToken),
			fmt.Sprintf("%.4f", r.ChannelWinRate), string(r.PredictionSource)}); err != nil {
			return err
		}
	}
	return nil
}
