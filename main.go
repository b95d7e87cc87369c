package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/doctor"
	"murmur/encoder"
	"murmur/focus"
	"murmur/hotkey"
	"murmur/log"
	"murmur/observe"
	"murmur/paste"
	"murmur/session"
	"murmur/transcriber"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(coord *session.Coordinator) {
	shutdownOnce.Do(func() {
		if coord != nil {
			coord.Close()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(prefs config.Preferences, engine transcriber.Engine) string {
	label := engine.Name()
	if prefs.Language != "" {
		label += " (" + prefs.Language + ")"
	}
	return fmt.Sprintf("[%s | %s]", prefs.RecordingMode, label)
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default: ~/.config/murmur/config.yaml)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	engineFlag := flag.String("engine", "", "Transcription engine: whisper or groq (overrides config)")
	modelFlag := flag.String("model", "", "Path to the whisper model file (overrides config)")
	langFlag := flag.String("lang", "", "Language code for transcription (overrides config)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	metricsFlag := flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for hold vs tap (e.g., 350ms)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run())
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	store, err := config.Load(cfgPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	prefs := store.Get()

	// Flags win over the config file for the session they are given.
	if *engineFlag != "" {
		prefs.Engine = *engineFlag
	}
	if *modelFlag != "" {
		prefs.Model = *modelFlag
	}
	if *langFlag != "" {
		prefs.Language = *langFlag
	}
	if *deviceFlag != "" {
		prefs.Device = *deviceFlag
	}
	if *metricsFlag != "" {
		prefs.MetricsAddr = *metricsFlag
	}
	if err := prefs.Validate(); err != nil {
		fatalf("invalid preferences: %v", err)
	}

	engine, err := transcriber.New(prefs.Engine, prefs.Model, prefs.Language)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	if prefs.MetricsAddr != "" {
		shutdownMetrics, err := observe.InitProvider(ctx, version)
		if err != nil {
			log.Warnf("metrics provider init failed: %v", err)
		} else {
			defer shutdownMetrics(context.Background())
			go func() {
				if err := observe.ServeMetrics(ctx, prefs.MetricsAddr); err != nil {
					log.Errorf("metrics server: %v", err)
				}
			}()
		}
	}
	metrics := observe.DefaultMetrics()

	actx, err := audio.NewContext()
	if err != nil {
		fatalf("initializing audio: %v", err)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if prefs.Device != "" {
		selectedDevice, err = audio.FindDevice(actx, prefs.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Printf("Warning: %v, falling back to default device\n", err)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	capture := audio.NewController(actx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if selectedDevice != nil {
		capture.SetInputDevice(selectedDevice)
	}

	clip := clipboard.NewSystem()
	intro := focus.NewIntrospector()
	paster := paste.NewController(clip, clipboard.NewKeystroker(), intro)

	var sink session.Sink = session.NopSink{}
	if *tuiFlag {
		sink = tuiSink{}
		paster.Notify = func(msg string) { tuiSend(ToastMsg{Text: msg}) }
	}

	coord := session.New(session.Deps{
		Capture: capture,
		Engine:  engine,
		Clip:    clip,
		Paster:  paster,
		Intro:   intro,
		Metrics: metrics,
		Sink:    sink,
		Prefs:   prefs,
	})
	go coord.Run()

	store.Watch(func(p config.Preferences) {
		log.Info("config_reloaded")
		coord.SetPreferences(p)
	})

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiCoord = coord
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(coord)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		gracefulShutdown(coord)
	}()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fatalf("registering hotkey: %v", err)
	}
	defer hk.Unregister()

	tuiSend(ModeLineMsg{Text: modeLineText(prefs, engine)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	if *hybridFlag {
		hy := hotkey.NewHybrid(hk, *longPressFlag)
		for {
			select {
			case ev := <-hy.Start():
				log.Info("hotkey_start_" + string(ev.Mode))
				coord.Start()
			case <-hy.StopChan():
				log.Info("hotkey_stop")
				coord.Stop("hotkey")
			}
		}
	}

	switch prefs.RecordingMode {
	case config.ModeHold:
		for {
			<-hk.Keydown()
			log.Info("hotkey_down")
			coord.Start()
			<-hk.Keyup()
			log.Info("hotkey_up")
			coord.Stop("hotkey_release")
		}
	default: // toggle
		for {
			<-hk.Keydown()
			switch coord.Phase() {
			case session.PhaseListening, session.PhaseInitializing:
				log.Info("hotkey_toggle_stop")
				coord.Stop("hotkey_toggle")
			default:
				log.Info("hotkey_toggle_start")
				coord.Start()
			}
			// Toggle mode keys off the press alone; drop the pending release.
			select {
			case <-hk.Keyup():
			default:
			}
		}
	}
}
