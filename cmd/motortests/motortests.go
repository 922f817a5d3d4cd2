package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Jagwires7443/Defense/pkg/pca9685"
)

var CLI struct {
	Bus      string        `help:"I2C bus device." default:"/dev/i2c-1"`
	Addr     int           `help:"PWM board I2C address." default:"64"`
	Power    float64       `help:"Throttle used by the sweep command." default:"0.2"`
	Duration time.Duration `help:"How long the sweep runs each channel." default:"1s"`
	Channels []int         `help:"Channels for the sweep command." default:"1,2,3,4"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Drive motor controllers on the PWM board by hand."))

	pwmController, err := pca9685.New(CLI.Bus, CLI.Addr)
	if err != nil {
		fmt.Println("Failed to open PCA9685", err)
		return
	}
	defer pwmController.Close()

	err = pwmController.Configure()
	if err != nil {
		fmt.Println("Failed to configure PCA9685", err)
		return
	}
	defer allOff(pwmController)

	fmt.Println(
		`Commands:
    t <n> <throttle>        # Drive channel at a throttle
    o <n>                   # Stop pulsing channel (controller goes neutral)
    sweep                   # Step each configured channel forward then back
    q                       # Quit

<n>         Port number 0-15
<throttle>  -1.0 to 1.0; 0=neutral`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "q":
			return
		case "sweep":
			if err := sweep(pwmController); err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
				return
			}
		case "t", "o":
			if len(parts) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			if n < 0 || n >= pca9685.NumPorts {
				fmt.Println("Expected 0 <= n < 16")
				continue
			}
			if parts[0] == "o" {
				fmt.Printf("Turning off %d\n", n)
				err = pwmController.Off(n)
			} else {
				if len(parts) < 3 {
					fmt.Println("Not enough parameters")
					continue
				}
				v, perr := strconv.ParseFloat(parts[2], 64)
				if perr != nil || v < -1 || v > 1 {
					fmt.Println("Expected float in -1..1, not ", parts[2])
					continue
				}
				fmt.Printf("Setting %d to %f (pulse %v)\n", n, v, pca9685.ThrottlePulse(v))
				err = pwmController.SetThrottle(n, v)
			}
			if err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
				return
			}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}

func sweep(p pca9685.Interface) error {
	for _, n := range CLI.Channels {
		for _, v := range []float64{CLI.Power, -CLI.Power} {
			fmt.Printf("Channel %d at %+.2f\n", n, v)
			if err := p.SetThrottle(n, v); err != nil {
				return err
			}
			time.Sleep(CLI.Duration)
			if err := p.SetThrottle(n, 0); err != nil {
				return err
			}
			time.Sleep(CLI.Duration / 4)
		}
		if err := p.Off(n); err != nil {
			return err
		}
	}
	return nil
}

func allOff(p pca9685.Interface) {
	for n := 0; n < pca9685.NumPorts; n++ {
		_ = p.Off(n)
	}
}
