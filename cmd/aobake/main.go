package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/aobake/aobake/app"
	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	samples := flag.Uint("samples", 0, "Hemisphere samples per texel (default 64)")
	aoLength := flag.Float64("ao-length", 0, "Maximum occlusion ray distance (default 100)")
	resolution := flag.Uint("resolution", 0, "Maximum atlas size in pixels (default 8192)")
	out := flag.String("out", "", "Write the baked map to this PNG file")
	useCPU := flag.Bool("cpu", false, "Bake on the CPU instead of the GPU")
	headless := flag.Bool("headless", false, "Bake without opening a preview window")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <scene.obj|.gltf|.glb|.crts>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	scenePath := flag.Arg(0)

	logger := log.NewDefaultLogger("aobake", *debug)

	var window *glfw.Window
	if !*headless {
		if err := glfw.Init(); err != nil {
			panic(err)
		}
		defer glfw.Terminate()

		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
		var err error
		window, err = glfw.CreateWindow(1024, 1024, "AO Bake", nil, nil)
		if err != nil {
			panic(err)
		}
		defer window.Destroy()
	}

	application := app.NewApp(window, logger)
	if !*headless || !*useCPU {
		// Headless CPU bakes never touch the device.
		if err := application.Init(); err != nil {
			logger.Errorf("init failed: %v", err)
			os.Exit(1)
		}
	}

	m, _, err := application.RunBake(app.Options{
		ScenePath:  scenePath,
		Samples:    uint32(*samples),
		AOLength:   float32(*aoLength),
		Resolution: uint32(*resolution),
		UseCPU:     *useCPU,
	})
	if err != nil {
		logger.Errorf("bake failed: %v", err)
		os.Exit(1)
	}

	if *out != "" {
		if err := app.WritePNG(*out, m); err != nil {
			logger.Errorf("write %s: %v", *out, err)
			os.Exit(1)
		}
		logger.Infof("wrote %s", *out)
	}

	if *headless {
		return
	}

	defer application.Close()
	if err := application.ShowMap(m); err != nil {
		logger.Errorf("preview failed: %v", err)
		os.Exit(1)
	}

	spp := uint32(*samples)
	if spp == 0 {
		spp = core.DefaultSamples
	}

	latest := m
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if key == glfw.KeyS && action == glfw.Press {
			path := *out
			if path == "" {
				path = "ao_bake.png"
			}
			if err := app.WritePNG(path, latest); err != nil {
				logger.Errorf("write %s: %v", path, err)
			} else {
				logger.Infof("wrote %s", path)
			}
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()

		start := time.Now()
		if next, err := application.Rebake(); err != nil {
			logger.Errorf("rebake failed: %v", err)
			window.SetShouldClose(true)
		} else if next != nil {
			latest = next
			window.SetTitle(fmt.Sprintf("AO Bake %dx%d, %d spp, %d ms",
				latest.Width, latest.Height, spp, time.Since(start).Milliseconds()))
		}

		application.Render()
	}
}
