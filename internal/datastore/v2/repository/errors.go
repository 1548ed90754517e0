package repository

import "github.com/smartgarden/gardend/internal/errors"

// Sentinel errors returned when a lookup by key finds nothing.
var (
	ErrSensorNotFound           = errors.NewStd("sensor not found")
	ErrBoardTypeNotFound        = errors.NewStd("board type not found")
	ErrPlantNotFound            = errors.NewStd("plant not found")
	ErrSoilTypeNotFound         = errors.NewStd("soil type not found")
	ErrReadingNotFound          = errors.NewStd("reading not found")
	ErrAlertRuleNotFound        = errors.NewStd("alert rule not found")
	ErrWateringEventNotFound    = errors.NewStd("watering event not found")
	ErrWateringScheduleNotFound = errors.NewStd("watering schedule not found")
	ErrChannelNotFound          = errors.NewStd("notification channel not found")
)

// IsNotFound reports whether err is one of the repository not-found sentinels.
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrSensorNotFound, ErrBoardTypeNotFound, ErrPlantNotFound, ErrSoilTypeNotFound,
		ErrReadingNotFound, ErrAlertRuleNotFound, ErrWateringEventNotFound,
		ErrWateringScheduleNotFound, ErrChannelNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
