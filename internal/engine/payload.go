package engine

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// rowsPayload is the response of a record written under batch.ByRows.
type rowsPayload struct {
	Status      core.Status `json:"Status"`
	BatchNumber int         `json:"Batch Number"`
	Records     int         `json:"No of records in batch"`
}

// profilePayload is the per-record response under batch.ByProfile.
type profilePayload struct {
	Status       core.Status `json:"status"`
	AffectedRows int64       `json:"affectedRows"`
	Message      string      `json:"message,omitempty"`
}

// decorate fills in the message and payload of every outcome of a flush.
func decorate(res *batch.Result, strategy batch.Strategy) {
	succeeded := res.Succeeded()
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		if o.Status == core.StatusSuccess {
			o.Message = fmt.Sprintf("batch %d executed successfully, %d records", res.Batch, succeeded)
		}
		o.Payload = payload(*o, strategy, len(res.Outcomes))
	}
}

// applicationError is the outcome of a record that never reached a batch.
func applicationError(rec core.Record, message string, strategy batch.Strategy) core.Outcome {
	o := core.Outcome{
		Record:  rec,
		Status:  core.StatusApplicationError,
		Message: message,
	}
	o.Payload = payload(o, strategy, 0)
	return o
}

func payload(o core.Outcome, strategy batch.Strategy, batchSize int) json.RawMessage {
	var v any
	if strategy == batch.ByProfile {
		p := profilePayload{Status: o.Status, AffectedRows: o.AffectedRows}
		if o.Status != core.StatusSuccess {
			p.Message = o.Message
		}
		v = p
	} else {
		v = rowsPayload{Status: o.Status, BatchNumber: o.Batch, Records: batchSize}
	}
	b, _ := json.Marshal(v)
	return b
}
