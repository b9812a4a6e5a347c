//go:build linux && (arm || arm64)

package hal

import (
	"errors"
	"fmt"

	"github.com/kidoman/embd"
	"github.com/kidoman/embd/convertors/mcp3008"
	_ "github.com/kidoman/embd/host/rpi"
)

type embdADC struct {
	adc *mcp3008.MCP3008
}

func (a embdADC) Read(input int) (int, error) {
	return a.adc.AnalogValueAt(input)
}

type embdOutput struct {
	pin embd.DigitalPin
}

func (o embdOutput) Set(high bool) error {
	if high {
		return o.pin.Write(embd.High)
	}
	return o.pin.Write(embd.Low)
}

type embdPWM struct {
	pin    embd.PWMPin
	period int // ns
}

func (p embdPWM) SetDuty(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("hal: duty %d%% out of range", percent)
	}
	return p.pin.SetDuty(p.period * int(percent) / 100)
}

func openEmbd(cfg Config) (h *Hardware, err error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	if err = embd.InitSPI(); err != nil {
		return nil, fmt.Errorf("hal: init spi: %w", err)
	}
	closers = append(closers, embd.CloseSPI)
	spi := embd.NewSPIBus(embd.SPIMode0, cfg.SPIChannel, cfg.SPISpeed, 0, 0)
	closers = append(closers, spi.Close)

	if err = embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("hal: init gpio: %w", err)
	}
	closers = append(closers, embd.CloseGPIO)

	pin, err := embd.NewDigitalPin(cfg.AlertPin)
	if err != nil {
		return nil, fmt.Errorf("hal: alert pin %s: %w", cfg.AlertPin, err)
	}
	closers = append(closers, pin.Close)
	if err = pin.SetDirection(embd.Out); err != nil {
		return nil, fmt.Errorf("hal: alert pin %s: %w", cfg.AlertPin, err)
	}

	h = &Hardware{
		ADC:   embdADC{adc: mcp3008.New(mcp3008.SingleMode, spi)},
		Alert: embdOutput{pin: pin},
	}

	if cfg.FanPin != "" {
		pwm, err := embd.NewPWMPin(cfg.FanPin)
		if err != nil {
			return nil, fmt.Errorf("hal: fan pin %s: %w", cfg.FanPin, err)
		}
		closers = append(closers, pwm.Close)
		period := int(cfg.FanPeriod.Nanoseconds())
		if err = pwm.SetPeriod(period); err != nil {
			return nil, fmt.Errorf("hal: fan period: %w", err)
		}
		h.Fan = embdPWM{pin: pwm, period: period}
	}

	h.close = closeAll
	return h, nil
}
