package domain

// Calendar key layouts used by the volume record.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// VolumeRecord is the persisted daily/monthly authentication attempt counter.
type VolumeRecord struct {
	Daily   DailyVolume   `json:"daily"`
	Monthly MonthlyVolume `json:"monthly"`
}

// DailyVolume counts attempts for one calendar day (YYYY-MM-DD).
type DailyVolume struct {
	Date  string `json:"date"`
	Count uint   `json:"count"`
}

// MonthlyVolume counts attempts for one calendar month (YYYY-MM).
type MonthlyVolume struct {
	Month string `json:"month"`
	Count uint   `json:"count"`
}

// Valid reports whether both calendar keys are present.
func (r VolumeRecord) Valid() bool {
	return r.Daily.Date != "" && r.Monthly.Month != ""
}
