package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" default:"armctl.yaml" description:"Configuration file"`

	Run    RunCommand    `command:"run" description:"Run the motor controller on a network interface or serial port"`
	Joints JointsCommand `command:"joints" alias:"list" description:"List controllable joints and poses"`
	Setup  SetupCommand  `command:"setup" description:"Scan for a serial bus arm and calibrate it"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armctl - interactive arm and waist controller for humanoid robots"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
