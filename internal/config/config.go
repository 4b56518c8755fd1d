package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Display     DisplayConfig     `yaml:"display"`
	Camera      CameraConfig      `yaml:"camera"`
	Paths       PathsConfig       `yaml:"paths"`
	Detector    DetectorConfig    `yaml:"detector"`
	Surface     SurfaceConfig     `yaml:"surface"`
	Store       StoreConfig       `yaml:"store"`
	Blob        BlobConfig        `yaml:"blob"`
	Log         LogConfig         `yaml:"log"`
}

type RecognitionConfig struct {
	FrameSkip      int     `yaml:"frame_skip"`      // run detection every Nth frame
	DetectionScale float64 `yaml:"detection_scale"` // downscale factor applied before detection
	Threshold      float64 `yaml:"threshold"`       // maximum accepted Euclidean distance (exclusive)
	Model          string  `yaml:"model"`           // "cnn" (accurate, slow) or "hog" (fast)
}

type AttendanceConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
}

type DisplayConfig struct {
	LoadingTimeoutFrames int `yaml:"loading_timeout_frames"`
	CycleFrames          int `yaml:"cycle_frames"`
	ProfileFrames        int `yaml:"profile_frames"` // frames of the cycle that show the full profile
}

type CameraConfig struct {
	Backend string `yaml:"backend"` // opencv, webcam or replay
	Device  string `yaml:"device"`  // device index, /dev/videoN or replay directory
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

type PathsConfig struct {
	Encodings string `yaml:"encodings"` // known-encodings artifact (.json or .yaml)
	Resources string `yaml:"resources"` // background.png and Modes/ (empty = synthesized panels)
}

type DetectorConfig struct {
	Backend   string `yaml:"backend"`    // dlib or service
	ModelsDir string `yaml:"models_dir"` // dlib model files
	URL       string `yaml:"url"`        // face embedding service
}

type SurfaceConfig struct {
	Backend string `yaml:"backend"` // window or stream
	Title   string `yaml:"title"`
	Listen  string `yaml:"listen"` // stream listen address
}

type StoreConfig struct {
	Backend        string `yaml:"backend"` // firebase, postgres or redis
	Namespace      string `yaml:"namespace"`
	DatabaseURL    string `yaml:"database_url"`    // Firebase RTDB URL or PostgreSQL DSN
	CredentialsKey string `yaml:"credentials_key"` // service account JSON file
	RedisAddress   string `yaml:"redis_address"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
}

type BlobConfig struct {
	Backend   string   `yaml:"backend"` // gcs, s3 or local
	Bucket    string   `yaml:"bucket"`
	Region    string   `yaml:"region"`
	Endpoint  string   `yaml:"endpoint"` // S3-compatible server, empty for AWS
	Dir       string   `yaml:"dir"`      // local backend root
	ImageExts []string `yaml:"image_exts"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // empty disables the rotating file
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			FrameSkip:      2,
			DetectionScale: 0.25,
			Threshold:      0.6,
			Model:          ModelCNN,
		},
		Attendance: AttendanceConfig{
			Cooldown:      300 * time.Second,
			WorkerTimeout: 10 * time.Second,
		},
		Display: DisplayConfig{
			LoadingTimeoutFrames: 30,
			CycleFrames:          20,
			ProfileFrames:        10,
		},
		Camera: CameraConfig{
			Backend: "opencv",
			Device:  "0",
			Width:   640,
			Height:  480,
		},
		Paths: PathsConfig{
			Encodings: "encodings.json",
			Resources: "Resources",
		},
		Detector: DetectorConfig{
			Backend:   "dlib",
			ModelsDir: "models",
			URL:       "http://localhost:8000",
		},
		Surface: SurfaceConfig{
			Backend: "window",
			Title:   "Face Attendance",
			Listen:  "0.0.0.0:8080",
		},
		Store: StoreConfig{
			Backend:        "firebase",
			Namespace:      "Students",
			CredentialsKey: "serviceAccountKey.json",
			MaxOpenConns:   5,
			MaxIdleConns:   2,
		},
		Blob: BlobConfig{
			Backend:   "gcs",
			Dir:       "Images",
			ImageExts: []string{"png", "jpg"},
		},
		Log: LogConfig{
			Level: "info",
			File:  "face_attendance.log",
		},
	}
}

// Detection model variants.
const (
	ModelCNN = "cnn"
	ModelHOG = "hog"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float from the environment, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration accepts either a Go duration ("5m") or plain seconds ("300").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
// A missing file at path is not an error; an unparsable one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Recognition.FrameSkip = envInt("FRAME_SKIP", c.Recognition.FrameSkip)
	c.Recognition.DetectionScale = envFloat("FACE_DETECTION_SCALE", c.Recognition.DetectionScale)
	c.Recognition.Threshold = envFloat("MIN_FACE_CONFIDENCE", c.Recognition.Threshold)
	c.Recognition.Model = envString("FACE_DETECTION_MODEL", c.Recognition.Model)

	c.Attendance.Cooldown = envDuration("ATTENDANCE_COOLDOWN", c.Attendance.Cooldown)
	c.Attendance.WorkerTimeout = envDuration("ATTENDANCE_WORKER_TIMEOUT", c.Attendance.WorkerTimeout)

	c.Display.LoadingTimeoutFrames = envInt("DISPLAY_LOADING_TIMEOUT_FRAMES", c.Display.LoadingTimeoutFrames)
	c.Display.CycleFrames = envInt("DISPLAY_CYCLE_FRAMES", c.Display.CycleFrames)
	c.Display.ProfileFrames = envInt("DISPLAY_PROFILE_FRAMES", c.Display.ProfileFrames)

	c.Camera.Backend = envString("CAMERA_BACKEND", c.Camera.Backend)
	c.Camera.Device = envString("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Width = envInt("MAX_FRAME_WIDTH", c.Camera.Width)
	c.Camera.Height = envInt("MAX_FRAME_HEIGHT", c.Camera.Height)

	c.Paths.Encodings = envString("ENCODINGS_PATH", c.Paths.Encodings)
	c.Paths.Resources = envString("RESOURCES_PATH", c.Paths.Resources)

	c.Detector.Backend = envString("DETECTOR_BACKEND", c.Detector.Backend)
	c.Detector.ModelsDir = envString("DETECTOR_MODELS_DIR", c.Detector.ModelsDir)
	c.Detector.URL = envString("EMBEDDING_URL", c.Detector.URL)

	c.Surface.Backend = envString("SURFACE_BACKEND", c.Surface.Backend)
	c.Surface.Listen = envString("SURFACE_LISTEN", c.Surface.Listen)

	c.Store.Backend = envString("STORE_BACKEND", c.Store.Backend)
	c.Store.Namespace = envString("STORE_NAMESPACE", c.Store.Namespace)
	c.Store.DatabaseURL = envString("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.CredentialsKey = envString("SERVICE_ACCOUNT_KEY", c.Store.CredentialsKey)
	c.Store.RedisAddress = envString("REDIS_ADDRESS", c.Store.RedisAddress)
	c.Store.RedisPassword = envString("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = envInt("REDIS_DB", c.Store.RedisDB)
	c.Store.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Store.MaxOpenConns)
	c.Store.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Store.MaxIdleConns)

	c.Blob.Backend = envString("BLOB_BACKEND", c.Blob.Backend)
	c.Blob.Bucket = envString("STORAGE_BUCKET", c.Blob.Bucket)
	c.Blob.Region = envString("AWS_REGION", c.Blob.Region)
	c.Blob.Endpoint = envString("S3_ENDPOINT", c.Blob.Endpoint)
	c.Blob.Dir = envString("BLOB_DIR", c.Blob.Dir)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.File = envString("LOG_FILE", c.Log.File)
}

var (
	storeBackends    = []string{"firebase", "postgres", "redis"}
	blobBackends     = []string{"gcs", "s3", "local"}
	detectorBackends = []string{"dlib", "service"}
	cameraBackends   = []string{"opencv", "webcam", "replay"}
	surfaceBackends  = []string{"window", "stream"}
)

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

// Validate rejects option combinations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Recognition.FrameSkip < 1 {
		errs = append(errs, errors.New("recognition.frame_skip must be >= 1"))
	}
	if c.Recognition.DetectionScale <= 0 || c.Recognition.DetectionScale > 1 {
		errs = append(errs, errors.New("recognition.detection_scale must be in (0, 1]"))
	}
	if c.Recognition.Threshold <= 0 {
		errs = append(errs, errors.New("recognition.threshold must be > 0"))
	}
	if c.Recognition.Model != ModelCNN && c.Recognition.Model != ModelHOG {
		errs = append(errs, fmt.Errorf("recognition.model: unknown value %q (want cnn or hog)", c.Recognition.Model))
	}
	if c.Attendance.Cooldown < 0 {
		errs = append(errs, errors.New("attendance.cooldown must not be negative"))
	}
	if c.Display.CycleFrames < 1 {
		errs = append(errs, errors.New("display.cycle_frames must be >= 1"))
	}
	if c.Display.ProfileFrames < 0 || c.Display.ProfileFrames >= c.Display.CycleFrames {
		errs = append(errs, errors.New("display.profile_frames must be in [0, cycle_frames)"))
	}
	if c.Display.LoadingTimeoutFrames < 1 {
		errs = append(errs, errors.New("display.loading_timeout_frames must be >= 1"))
	}

	for _, check := range []struct {
		field, value string
		allowed      []string
	}{
		{"store.backend", c.Store.Backend, storeBackends},
		{"blob.backend", c.Blob.Backend, blobBackends},
		{"detector.backend", c.Detector.Backend, detectorBackends},
		{"camera.backend", c.Camera.Backend, cameraBackends},
		{"surface.backend", c.Surface.Backend, surfaceBackends},
	} {
		if err := oneOf(check.field, check.value, check.allowed); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
