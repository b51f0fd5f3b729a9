package hal

import (
	"errors"

	"sensorcode-go/drivers/bh1750"
	"sensorcode-go/drivers/bme280"
	"sensorcode-go/drivers/frame"
	"sensorcode-go/drivers/ld2410"
	"sensorcode-go/drivers/regmap"
	"sensorcode-go/drivers/zphs01c"
	"sensorcode-go/errcode"
	"sensorcode-go/x/cursor"
)

func errUnknownBus(id string) error {
	return &errcode.E{C: errcode.UnknownBus, Msg: id}
}

// codeOf maps driver sentinels to stable bus-facing codes.
func codeOf(err error) errcode.Code {
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, frame.ErrTimeout):
		return errcode.Timeout
	case errors.Is(err, bme280.ErrNotFound):
		return errcode.NoDevice
	case errors.Is(err, bme280.ErrNotConfigured):
		return errcode.HALNotReady
	case errors.Is(err, cursor.ErrOutOfBounds):
		return errcode.OutOfBounds
	case errors.Is(err, regmap.ErrShortBuffer):
		return errcode.MalformedLayout
	case errors.Is(err, bme280.ErrCalibration):
		return errcode.InvalidParams
	case errors.Is(err, bh1750.ErrShortRead),
		errors.Is(err, zphs01c.ErrBadReply),
		errors.Is(err, zphs01c.ErrWrongReply),
		errors.Is(err, ld2410.ErrBadReport):
		return errcode.BadFrame
	case errors.Is(err, ld2410.ErrNoAck):
		return errcode.Timeout
	case errors.Is(err, ld2410.ErrAck),
		errors.Is(err, ld2410.ErrNotConfig):
		return errcode.InvalidParams
	default:
		if c := errcode.Of(err); c != errcode.Error {
			return c
		}
		return errcode.MapDriverErr(err)
	}
}
