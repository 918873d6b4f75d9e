package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskpilot/assistant-api/internal/intent"
	"github.com/taskpilot/assistant-api/internal/llm"
	"github.com/taskpilot/assistant-api/internal/logging"
	"github.com/taskpilot/assistant-api/internal/metrics"
	"github.com/taskpilot/assistant-api/internal/nlquery"
	"github.com/taskpilot/assistant-api/internal/weather"
)

// defaultTemperature applies when the inbound message carries none
const defaultTemperature = 0.7

// analystPersona primes the analysis path
const analystPersona = "你是一个专业的数据分析师，擅长解读数据并提供有价值的见解。"

// InboundMessage is one client request on the websocket
type InboundMessage struct {
	Type        string        `json:"type,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// QueryProcessor answers a natural-language database question
type QueryProcessor interface {
	Process(ctx context.Context, question string) (*nlquery.StructuredResult, error)
}

// WeatherService looks up current conditions for a city
type WeatherService interface {
	Now(ctx context.Context, city string) (*weather.Report, error)
}

// ChatEngine is the external completion capability, in both
// one-shot and streaming form.
type ChatEngine interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
	Stream(ctx context.Context, messages []llm.Message, temperature float64, handler llm.StreamHandler) error
}

// TimePayload is the fast-path answer for a time intent
type TimePayload struct {
	Timestamp string `json:"timestamp"`
	Time      string `json:"time"`
	Message   string `json:"message"`
}

// Dispatcher routes one inbound message to a fast path or the
// chat-completion fallback and emits the resulting frames. Any
// fast-path failure degrades to the fallback rather than erroring
// the session.
type Dispatcher struct {
	cascade  *intent.Cascade
	queries  QueryProcessor
	weather  WeatherService
	engine   ChatEngine
	location *time.Location
	now      func() time.Time
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher. Times are reported in
// Asia/Shanghai, falling back to a fixed UTC+8 zone when the tz
// database is unavailable.
func NewDispatcher(cascade *intent.Cascade, queries QueryProcessor, weatherSvc WeatherService,
	engine ChatEngine, logger *logging.Logger) *Dispatcher {
	location, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		location = time.FixedZone("CST", 8*3600)
	}
	return &Dispatcher{
		cascade:  cascade,
		queries:  queries,
		weather:  weatherSvc,
		engine:   engine,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// Dispatch handles one inbound message, emitting each frame as it
// becomes available. The returned error is a transport failure from
// emit; everything else is shaped into frames.
func (d *Dispatcher) Dispatch(ctx context.Context, msg InboundMessage, emit func(Frame) error) error {
	if len(msg.Messages) == 0 {
		return emit(ErrorFrame("messages 不能为空"))
	}

	temperature := defaultTemperature
	if msg.Temperature != nil {
		temperature = *msg.Temperature
	}

	if msg.Type == "analysis" {
		return d.dispatchAnalysis(ctx, msg.Messages, temperature, emit)
	}

	utterance := msg.Messages[len(msg.Messages)-1].Content
	match := d.cascade.Recognize(utterance)
	metrics.RecordIntentMatch(string(match.Intent))

	switch match.Intent {
	case intent.TypeWeather:
		if err := d.dispatchWeather(ctx, match.Params["city"], emit); err == nil {
			return nil
		} else if isEmitError(err) {
			return err
		}
	case intent.TypeTime:
		return d.dispatchTime(emit)
	case intent.TypeDatabaseQuery:
		if err := d.dispatchQuery(ctx, match.Params["question"], emit); err == nil {
			return nil
		} else if isEmitError(err) {
			return err
		}
	}

	return d.dispatchFallback(ctx, msg.Messages, temperature, emit)
}

// dispatchAnalysis runs the one-shot analysis path. It never touches
// the cascade or the caches.
func (d *Dispatcher) dispatchAnalysis(ctx context.Context, messages []llm.Message, temperature float64, emit func(Frame) error) error {
	primed := append([]llm.Message{{Role: "system", Content: analystPersona}}, messages...)

	content, err := d.engine.Complete(ctx, primed, temperature)
	if err != nil {
		d.logger.Warn("Analysis completion failed", map[string]interface{}{
			"error": err.Error(),
		})
		return emit(ErrorFrame("分析失败，请稍后重试"))
	}
	return emit(AnalysisFrame(content))
}

// emitError marks an error as coming from the emit callback so the
// caller can tell transport failures from fast-path failures.
type emitError struct {
	err error
}

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

func isEmitError(err error) bool {
	_, ok := err.(*emitError)
	return ok
}

// emitJSON serializes payload into a single stream frame
func emitJSON(payload interface{}, emit func(Frame) error) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := emit(StreamFrame(string(data))); err != nil {
		return &emitError{err: err}
	}
	return nil
}

func (d *Dispatcher) dispatchWeather(ctx context.Context, city string, emit func(Frame) error) error {
	report, err := d.weather.Now(ctx, city)
	if err != nil {
		d.logger.Warn("Weather lookup failed, degrading to fallback", map[string]interface{}{
			"city":  city,
			"error": err.Error(),
		})
		metrics.RecordFallback("weather")
		return err
	}
	return emitJSON(report, emit)
}

func (d *Dispatcher) dispatchTime(emit func(Frame) error) error {
	now := d.now().In(d.location)
	formatted := now.Format("2006年01月02日 15:04:05")
	payload := TimePayload{
		Timestamp: now.Format(time.RFC3339),
		Time:      formatted,
		Message:   fmt.Sprintf("当前时间是 %s", formatted),
	}
	return emitJSON(payload, emit)
}

func (d *Dispatcher) dispatchQuery(ctx context.Context, question string, emit func(Frame) error) error {
	result, err := d.queries.Process(ctx, question)
	if err != nil {
		d.logger.Warn("Database query failed, degrading to fallback", map[string]interface{}{
			"question": question,
			"error":    err.Error(),
		})
		metrics.RecordFallback("database_query")
		return err
	}
	return emitJSON(result, emit)
}

// dispatchFallback streams a general chat completion, forwarding
// tokens and tool-call fragments in arrival order. A stream failure
// becomes a single error frame; the session stays open.
func (d *Dispatcher) dispatchFallback(ctx context.Context, messages []llm.Message, temperature float64, emit func(Frame) error) error {
	var transportErr error
	handler := llm.StreamHandler{
		OnContent: func(token string) error {
			if err := emit(StreamFrame(token)); err != nil {
				transportErr = err
				return err
			}
			return nil
		},
		OnToolCalls: func(fragments []llm.ToolCallFragment) error {
			if err := emit(ToolCallsFrame(fragments)); err != nil {
				transportErr = err
				return err
			}
			return nil
		},
	}

	if err := d.engine.Stream(ctx, messages, temperature, handler); err != nil {
		if transportErr != nil {
			return transportErr
		}
		d.logger.Warn("Fallback stream failed", map[string]interface{}{
			"error": err.Error(),
		})
		return emit(ErrorFrame("对话生成失败，请稍后重试"))
	}
	return nil
}
