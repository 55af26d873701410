package model

// DeviceBreakdown holds in-window scan counts per recognized device type.
// Events with an unrecognized device type are counted in TotalScans but in
// none of these buckets.
type DeviceBreakdown struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
	Tablet  int64 `json:"tablet"`
}

// GeoBucket is one row of a top-N geographic rollup. City is empty for
// country buckets.
type GeoBucket struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Count   int64  `json:"count"`
}

// HourBucket is one slot of the dense 24-entry local-hour histogram.
type HourBucket struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// AnalyticsResult is the full aggregation response for one QR code.
//
// TotalScans and everything below it honor the selected window;
// ScansToday/ThisWeek/ThisMonth are always fixed trailing windows measured
// from the single reference instant of the call, so the dashboard headline
// cards do not move when the user narrows the range.
type AnalyticsResult struct {
	QRCodeID       int64 `json:"qr_code_id"`
	TotalScans     int64 `json:"total_scans"`
	ScansToday     int64 `json:"scans_today"`
	ScansThisWeek  int64 `json:"scans_this_week"`
	ScansThisMonth int64 `json:"scans_this_month"`

	DeviceBreakdown  DeviceBreakdown `json:"device_breakdown"`
	MobilePercentage float64         `json:"mobile_percentage"`

	TopCountries []GeoBucket `json:"top_countries"`
	TopCities    []GeoBucket `json:"top_cities"`

	HourlyBreakdown []HourBucket `json:"hourly_breakdown"`
	PeakHour        *int         `json:"peak_hour"`

	FilteredScanCount int64       `json:"filtered_scan_count"`
	TotalPages        int         `json:"total_pages"`
	Page              int         `json:"page"`
	PageSize          int         `json:"page_size"`
	Scans             []ScanEvent `json:"scans"`
}
