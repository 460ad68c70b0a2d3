/*
 * x86emu - Debug options configuration.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package debugconfig

import (
	"errors"
	"strings"

	config "github.com/rcornwell/x86emu/config/configparser"
	"github.com/rcornwell/x86emu/emu/cpu"
)

// register a device on initialize.
func init() {
	config.RegisterModel("DEBUG", config.TypeOptions, setDebug)
}

// setDebug processes the DEBUG CPU=... configuration line. The teacher's
// CHANNEL and TAPE sub-devices have no analogue here; a bare-metal
// engine with no channel subsystem and no tape drives has nothing to
// route those options to.
func setDebug(_ uint16, device string, options []config.Option) error {
	if strings.ToUpper(device) != "CPU" {
		return errors.New("debug option invalid: " + device)
	}

	for _, opt := range options {
		if err := cpu.Debug(strings.ToUpper(opt.Name)); err != nil {
			return err
		}
		for _, value := range opt.Value {
			if err := cpu.Debug(strings.ToUpper(*value)); err != nil {
				return err
			}
		}
	}
	return nil
}
