package rfid

import (
	"encoding/hex"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// ReadRecord describes one slot in which the reader singulated a tag.
type ReadRecord struct {
	Round           int     `json:"round"`
	Antenna         int     `json:"antenna"`
	TagPosition     r3.Vec  `json:"tag_position"`
	AntennaPosition r3.Vec  `json:"antenna_position"`
	SNR             float64 `json:"snr"`
	BER             float64 `json:"ber"`
	StartedAt       float64 `json:"started_at"`
	EndedAt         float64 `json:"ended_at"`
	EPCRead         bool    `json:"epc_read"`
	TIDRead         bool    `json:"tid_read"`
}

// PowerSample is one observation of a tag's link budget.
type PowerSample struct {
	Time          float64 `json:"time"`
	TagRxPower    float64 `json:"tag_rx_power"`
	ReaderRxPower float64 `json:"reader_rx_power"`
	SNR           float64 `json:"snr"`
	BER           float64 `json:"ber"`
}

// TagRecord accumulates what happened to one tag.
type TagRecord struct {
	Index      int           `json:"index"`
	EPC        string        `json:"epc"`
	CreatedAt  float64       `json:"created_at"`
	RemovedAt  float64       `json:"removed_at"`
	Removed    bool          `json:"removed"`
	Rounds     int           `json:"rounds"`
	Collisions int           `json:"collisions"`
	EPCRead    bool          `json:"epc_read"`
	TIDRead    bool          `json:"tid_read"`
	FirstEPCAt float64       `json:"first_epc_at"`
	FirstTIDAt float64       `json:"first_tid_at"`
	Reads      []ReadRecord  `json:"reads,omitempty"`
	Power      []PowerSample `json:"power,omitempty"`
}

// Statistics is written by the handlers and read only after the run.
type Statistics struct {
	TagsCreated   int `json:"tags_created"`
	TagsSimulated int `json:"tags_simulated"`

	Rounds       int `json:"rounds"`
	Slots        int `json:"slots"`
	EmptySlots   int `json:"empty_slots"`
	Collisions   int `json:"collisions"`
	LostReplies  int `json:"lost_replies"`
	QAdjustments int `json:"q_adjustments"`
	PeakQ        int `json:"peak_q"`

	Tags []*TagRecord `json:"tags"`

	byTag map[*Tag]*TagRecord
}

// NewStatistics returns an empty collector.
func NewStatistics() *Statistics {
	return &Statistics{byTag: make(map[*Tag]*TagRecord)}
}

// Open starts the record of a new tag.
func (s *Statistics) Open(t *Tag) *TagRecord {
	rec := &TagRecord{
		Index:     t.Index,
		EPC:       strings.ToUpper(hex.EncodeToString(t.EPC)),
		CreatedAt: t.CreatedAt,
	}
	s.byTag[t] = rec
	s.Tags = append(s.Tags, rec)
	s.TagsCreated++
	return rec
}

// Record returns the record of a live tag.
func (s *Statistics) Record(t *Tag) (*TagRecord, bool) {
	rec, ok := s.byTag[t]
	return rec, ok
}

// Close finishes the record of a removed tag.
func (s *Statistics) Close(t *Tag, now float64) {
	rec, ok := s.byTag[t]
	if !ok {
		return
	}
	rec.Removed = true
	rec.RemovedAt = now
	delete(s.byTag, t)
	s.TagsSimulated++
}

func (s *Statistics) simulated() []*TagRecord {
	out := make([]*TagRecord, 0, s.TagsSimulated)
	for _, rec := range s.Tags {
		if rec.Removed {
			out = append(out, rec)
		}
	}
	return out
}

func meanOf(recs []*TagRecord, f func(*TagRecord) (float64, bool)) float64 {
	xs := make([]float64, 0, len(recs))
	for _, rec := range recs {
		if x, ok := f(rec); ok {
			xs = append(xs, x)
		}
	}
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// The aggregates below cover tags that completed their lifetime. They are 0
// when no tag did.

// AverageRoundsPerTag returns the mean number of inventory rounds a tag took
// part in.
func (s *Statistics) AverageRoundsPerTag() float64 {
	return meanOf(s.simulated(), func(r *TagRecord) (float64, bool) { return float64(r.Rounds), true })
}

// InventoryProbability returns the share of tags whose EPC was read.
func (s *Statistics) InventoryProbability() float64 {
	return meanOf(s.simulated(), func(r *TagRecord) (float64, bool) { return indicator(r.EPCRead), true })
}

// ReadTIDProbability returns the share of tags whose TID was read.
func (s *Statistics) ReadTIDProbability() float64 {
	return meanOf(s.simulated(), func(r *TagRecord) (float64, bool) { return indicator(r.TIDRead), true })
}

// AverageIdentificationTime returns the mean time from a tag's creation to
// its first TID read, or its first EPC read when readTID is false.
func (s *Statistics) AverageIdentificationTime(readTID bool) float64 {
	return meanOf(s.simulated(), func(r *TagRecord) (float64, bool) {
		if readTID {
			return r.FirstTIDAt - r.CreatedAt, r.TIDRead
		}
		return r.FirstEPCAt - r.CreatedAt, r.EPCRead
	})
}

// AverageCollisionsPerTag returns the mean number of collisions a tag was
// involved in.
func (s *Statistics) AverageCollisionsPerTag() float64 {
	return meanOf(s.simulated(), func(r *TagRecord) (float64, bool) { return float64(r.Collisions), true })
}
