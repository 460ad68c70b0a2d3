/*
 * x86emu - Main process.
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

package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/rcornwell/x86emu/config/configparser"
	"github.com/rcornwell/x86emu/emu/core"
	"github.com/rcornwell/x86emu/emu/ioport"
	"github.com/rcornwell/x86emu/emu/memory"
	logger "github.com/rcornwell/x86emu/util/logger"

	_ "github.com/rcornwell/x86emu/config/debugconfig"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "x86emu.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optROM := getopt.StringLong("rom", 'r', "", "BIOS ROM image, loaded just below 4G")
	optMemSize := getopt.Uint64Long("memory", 'm', 16*1024*1024, "Memory size in bytes")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, new(bool)))
	slog.SetDefault(Logger)

	Logger.Info("x86emu started")

	if optConfig != nil && *optConfig != "" {
		if _, err := os.Stat(*optConfig); err == nil {
			if err := config.LoadConfigFile(*optConfig); err != nil {
				Logger.Error(err.Error())
				os.Exit(1)
			}
		} else {
			Logger.Warn("configuration file not found, continuing with defaults", "path", *optConfig)
		}
	}

	memory.SetSize(*optMemSize)

	pic := ioport.NewPIC()
	pit := ioport.NewPIT()
	kbc := ioport.NewKBC()
	cmos := ioport.NewCMOS(time.Now())
	com1 := ioport.NewSerial(0x3F8)

	ioport.Register(0x40, pit)
	ioport.Register(0x41, pit)
	ioport.Register(0x42, pit)
	ioport.Register(0x43, pit)
	ioport.Register(0x20, pic)
	ioport.Register(0x21, pic)
	ioport.Register(0xA0, pic)
	ioport.Register(0xA1, pic)
	ioport.Register(0x60, kbc)
	ioport.Register(0x64, kbc)
	ioport.Register(0x70, cmos)
	ioport.Register(0x71, cmos)
	ioport.Register(0x3F8, com1)
	ioport.Register(0x3FD, com1)

	sim := core.New(pic, pit)

	if optROM != nil && *optROM != "" {
		image, err := os.ReadFile(*optROM)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		// A BIOS image is conventionally sized to end at the 4G
		// boundary, which is also where the reset vector aliases to.
		base := uint64(0x100000000 - uint64(len(image)))
		memory.WriteBytes(base, image)
	}

	sim.Start()
	sim.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msg := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			input, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			msg <- input
		}
	}()

loop:
	for {
		select {
		case <-sigChan:
			fmt.Println("Got quit signal")
			break loop
		case cmd := <-msg:
			switch strings.TrimSpace(cmd) {
			case "halt", "h":
				sim.Halt()
			case "run", "r":
				sim.Run()
			default:
				cpu := sim.CPU()
				fmt.Printf("mode=%s halted=%v\n", cpu.Mode(), cpu.Halted())
			}
		}
	}

	Logger.Info("shutting down")
	sim.Stop()
}
