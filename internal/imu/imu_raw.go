package imu

// AccelRaw represents a single raw accelerometer sample in sensor counts.
type AccelRaw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// AccelRawSource is implemented by sensors that expose raw accelerometer counts.
type AccelRawSource interface {
	ReadAccelRaw() (AccelRaw, error)
}
