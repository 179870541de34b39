package components

import (
	"testing"
	"time"

	"github.com/gridmix/gridmix/config"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/stats"
	"github.com/gridmix/gridmix/stream"
)

func TestNewRecordValidator(t *testing.T) {
	log := logger.NewLogger("gridmix", "info", false)
	fm := config.DefaultFieldMap()

	// Test 1 - bad records are rejected with a reason and the rest pass through.
	log.Info("Test 1, rejects are counted while good records pass")
	inputChan := make(chan stream.Record, 20)
	for idx := 0; idx < 8; idx++ { // 8 good records...
		rec := stream.NewRecord()
		rec.SetData("DATETIME", time.Date(2024, 1, 1, idx, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05"))
		rec.SetData("GAS", "100.5")
		inputChan <- rec
	}
	badDt := stream.NewRecord() // unparseable datetime...
	badDt.SetData("DATETIME", "not-a-time")
	badDt.SetData("GAS", "1")
	inputChan <- badDt
	noDt := stream.NewRecord() // missing datetime...
	noDt.SetData("GAS", "1")
	inputChan <- noDt
	allNull := stream.NewRecord() // nothing numeric to load...
	allNull.SetData("DATETIME", "2024-01-01T09:00:00")
	allNull.SetData("GAS", "")
	allNull.SetData("WIND", "n/a")
	inputChan <- allNull
	close(inputChan)

	rejections := stats.NewRejections()
	waiter := &testWaiter{}
	outputChan, _ := NewRecordValidator(&RecordValidatorConfig{
		Log:         log,
		Name:        "test-validator",
		InputChan:   inputChan,
		FieldMap:    fm,
		Rejections:  rejections,
		WaitCounter: waiter,
	})
	got := make([]stream.Record, 0, 8)
	for rec := range outputChan {
		got = append(got, rec)
	}
	waiter.wg.Wait()
	if len(got) != 8 {
		t.Fatal("Test 1, expected 8 accepted records, got ", len(got))
	}
	if rejections.Total() != 3 {
		t.Fatal("Test 1, expected 3 rejections, got ", rejections.Total())
	}
	reasons := rejections.Reasons()
	if reasons[RejectReasonBadDatetime] != 1 || reasons[RejectReasonMissingDatetime] != 1 || reasons[RejectReasonNoNumericValues] != 1 {
		t.Fatal("Test 1, unexpected rejection reasons: ", reasons)
	}

	// Test 2 - accepted records carry the parsed UTC timestamp.
	log.Info("Test 2, accepted records carry the parsed timestamp")
	dt, ok := got[0].GetData("datetime_utc").(time.Time)
	if !ok {
		t.Fatal("Test 2, expected a time.Time, got ", got[0].GetData("datetime_utc"))
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !dt.Equal(want) || dt.Location() != time.UTC {
		t.Fatal("Test 2, unexpected timestamp: ", dt)
	}
}
