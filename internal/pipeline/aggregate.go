package pipeline

import (
	"fmt"
	"time"

	"github.com/ayusman/gridwatch/internal/detector"
)

// Aggregate reduces one detector invocation's results into the published
// State. The detail slice preserves the detector's output order; no
// re-sorting happens anywhere downstream.
//
// Zero detections yield the sentinel. A single detection promotes its own
// fields to the primary slots. Several detections are summarized under a
// "Multiple Detections (N)" primary label with the highest confidence and
// temperature among them.
func Aggregate(dets []detector.Detection, now time.Time) State {
	switch len(dets) {
	case 0:
		return NoDetection(now)

	case 1:
		d := dets[0]
		return State{
			PrimaryLabel:       d.Label,
			PrimaryConfidence:  d.Confidence,
			PrimaryTemperature: d.Temperature,
			Detail:             []detector.Detection{d},
			Timestamp:          now,
		}

	default:
		detail := make([]detector.Detection, len(dets))
		copy(detail, dets)

		maxConf, maxTemp := detail[0].Confidence, detail[0].Temperature
		for _, d := range detail[1:] {
			if d.Confidence > maxConf {
				maxConf = d.Confidence
			}
			if d.Temperature > maxTemp {
				maxTemp = d.Temperature
			}
		}

		return State{
			PrimaryLabel:       fmt.Sprintf("Multiple Detections (%d)", len(detail)),
			PrimaryConfidence:  maxConf,
			PrimaryTemperature: maxTemp,
			Detail:             detail,
			Timestamp:          now,
			IsMultiple:         true,
		}
	}
}
