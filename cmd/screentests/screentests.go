package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fogleman/gg"

	"github.com/Jagwires7443/Defense/pkg/screen"
)

var CLI struct {
	Device string `help:"Framebuffer device to drive; empty to only write PNGs." default:"/dev/fb1"`
	PNG    string `help:"Also save each frame to this PNG file."`
}

func main() {
	kong.Parse(&CLI, kong.Description("Exercise the status screen."))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if CLI.Device != "" {
		go screen.LoopUpdatingScreen(ctx, CLI.Device)
	}

	fmt.Println(
		`Commands:
    e               # Outputs enabled
    d               # Outputs disabled
    !<text>         # Raise an error notice
    -<text>         # Clear a notice
    <anything else> # Set the mode name`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "e":
			screen.SetEnabled(true)
		case line == "d":
			screen.SetEnabled(false)
		case strings.HasPrefix(line, "!"):
			screen.SetNotice(line[1:], screen.LevelErr)
		case strings.HasPrefix(line, "-"):
			screen.ClearNotice(line[1:])
		default:
			screen.SetMode(line)
		}

		if CLI.PNG != "" {
			if err := gg.SavePNG(CLI.PNG, screen.Render()); err != nil {
				fmt.Println("Failed to save PNG: ", err)
			}
		}
	}
}
