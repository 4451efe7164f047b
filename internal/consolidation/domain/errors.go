package consolidation

import "errors"

var (
	// ErrInvalidMonth is returned when year/month cannot form a calendar month.
	ErrInvalidMonth = errors.New("consolidation: invalid month")
	// ErrInvalidHolidayFormat is returned when holiday input is not a list of days 1..31.
	ErrInvalidHolidayFormat = errors.New("consolidation: invalid holiday format")
	// ErrNoChannelsProvided is returned when a run has no usable channel.
	ErrNoChannelsProvided = errors.New("consolidation: no channels provided")
	// ErrInvalidFactor is returned when a calibration multiplier is not positive.
	ErrInvalidFactor = errors.New("consolidation: invalid factor")
	// ErrEmptyChannelID is returned when a channel has no identifier.
	ErrEmptyChannelID = errors.New("consolidation: empty channel id")
	// ErrUnknownTariffRule is returned when a boundary rule name is not recognised.
	ErrUnknownTariffRule = errors.New("consolidation: unknown tariff rule")
	// ErrUnknownPolicy is returned when a duplicate or fill policy name is not recognised.
	ErrUnknownPolicy = errors.New("consolidation: unknown policy")
	// ErrMissingTableMarker is returned by channel readers when a file has no
	// table header. The file is skipped and reported; the run continues.
	ErrMissingTableMarker = errors.New("consolidation: missing table marker")
	// ErrUnknownProfile is returned when a named site profile is not configured.
	ErrUnknownProfile = errors.New("consolidation: unknown profile")
)
