package replay

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

// readBars loads 1-minute bars from a csv of
// timestamp,open,high,low,close,volume rows, keeping those inside [start, end).
func readBars(path string, start, end time.Time) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bar data: %w", err)
	}
	defer f.Close()

	rdr := csv.NewReader(bufio.NewReader(f))
	if _, err := rdr.Read(); err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var bars []market.Bar
	for {
		data, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bar data: %w", err)
		}

		bar, err := parseBar(data)
		if err != nil {
			return nil, err
		}

		if bar.Time.Before(start) || !bar.Time.Before(end) {
			continue
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func parseBar(data []string) (market.Bar, error) {
	if len(data) < 6 {
		return market.Bar{}, fmt.Errorf("short bar row: %v", data)
	}

	timestamp, err := strconv.ParseFloat(data[0], 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to parse bar time: %w", err)
	}

	fields := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		fields[i], err = decimal.NewFromString(data[i+1])
		if err != nil {
			return market.Bar{}, fmt.Errorf("failed to read %s price: %w", names[i], err)
		}
	}

	return market.Bar{
		Time:   time.Unix(int64(timestamp), 0),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
