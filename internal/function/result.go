package function

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Outcome различает три исхода выполнения функции.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeDomainFailure
	OutcomeFatalFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDomainFailure:
		return "domain_failure"
	case OutcomeFatalFailure:
		return "fatal_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Code — машиночитаемая причина доменного отказа.
type Code string

const (
	CodeNone             Code = ""
	CodeInvalidArguments Code = "invalid_arguments"
	CodeNotFound         Code = "not_found"
	CodeCacheClosed      Code = "cache_closed"
	CodeIllegalState     Code = "illegal_state"
)

// ConfigEntity описывает изменение кластерной конфигурации.
type ConfigEntity struct {
	Kind           string `json:"kind" cbor:"kind"`
	AttributeName  string `json:"attribute_name" cbor:"attr"`
	AttributeValue string `json:"attribute_value" cbor:"value"`
}

// Result — неизменяемый конверт результата одного вызова функции.
type Result struct {
	memberID string
	outcome  Outcome
	message  string
	code     Code
	detail   string
	values   []string
	entity   *ConfigEntity
}

// Success создает успешный результат с плоским набором значений.
func Success(memberID string, values ...string) Result {
	return Result{memberID: memberID, outcome: OutcomeSuccess, values: clone(values)}
}

// SuccessMessage создает успешный результат с сообщением.
func SuccessMessage(memberID, message string) Result {
	return Result{memberID: memberID, outcome: OutcomeSuccess, message: message}
}

// SuccessEntity создает успешный результат, изменивший конфигурацию.
func SuccessEntity(memberID string, entity ConfigEntity, message string) Result {
	e := entity
	return Result{memberID: memberID, outcome: OutcomeSuccess, entity: &e, message: message}
}

// DomainFailure создает ожидаемый отказ с точным сообщением.
func DomainFailure(memberID string, code Code, message string) Result {
	return Result{memberID: memberID, outcome: OutcomeDomainFailure, code: code, message: message}
}

// FatalFailure создает отказ из-за непредвиденной ошибки участника.
func FatalFailure(memberID string, err error) Result {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result{memberID: memberID, outcome: OutcomeFatalFailure, detail: detail}
}

func (r Result) MemberID() string      { return r.memberID }
func (r Result) Outcome() Outcome      { return r.outcome }
func (r Result) Message() string       { return r.message }
func (r Result) Code() Code            { return r.code }
func (r Result) Detail() string        { return r.detail }
func (r Result) Values() []string      { return clone(r.values) }
func (r Result) IsSuccessful() bool    { return r.outcome == OutcomeSuccess }
func (r Result) HasValues() bool       { return len(r.values) > 0 }
func (r Result) IsDomainFailure() bool { return r.outcome == OutcomeDomainFailure }

// Entity возвращает описание изменения конфигурации, если оно есть.
func (r Result) Entity() (ConfigEntity, bool) {
	if r.entity == nil {
		return ConfigEntity{}, false
	}
	return *r.entity, true
}

// ErrorMessage возвращает текст отказа для вывода пользователю.
func (r Result) ErrorMessage() string {
	switch r.outcome {
	case OutcomeDomainFailure:
		return r.message
	case OutcomeFatalFailure:
		return r.detail
	default:
		return ""
	}
}

// Pairs возвращает значения, сгруппированные по парам.
func (r Result) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(r.values)/2)
	for i := 0; i+1 < len(r.values); i += 2 {
		pairs = append(pairs, [2]string{r.values[i], r.values[i+1]})
	}
	return pairs
}

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

const wireVersion = 1

var (
	errWireVersion = errors.New("unsupported result wire version")
	errWireOutcome = errors.New("invalid result outcome")
	errWireMember  = errors.New("result has no member id")
	errWireMixed   = errors.New("result carries fields of another outcome")
)

type wireResult struct {
	Version  int           `cbor:"v" json:"-"`
	MemberID string        `cbor:"member" json:"member"`
	Outcome  string        `cbor:"outcome" json:"outcome"`
	Message  string        `cbor:"message,omitempty" json:"message,omitempty"`
	Code     Code          `cbor:"code,omitempty" json:"code,omitempty"`
	Detail   string        `cbor:"detail,omitempty" json:"detail,omitempty"`
	Values   []string      `cbor:"values,omitempty" json:"values,omitempty"`
	Entity   *ConfigEntity `cbor:"entity,omitempty" json:"entity,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("function: CBOR encoder initialization failed: " + err.Error())
	}
}

func (r Result) wire() wireResult {
	return wireResult{
		Version:  wireVersion,
		MemberID: r.memberID,
		Outcome:  r.outcome.String(),
		Message:  r.message,
		Code:     r.code,
		Detail:   r.detail,
		Values:   r.values,
		Entity:   r.entity,
	}
}

// MarshalBinary кодирует конверт в детерминированный CBOR.
func (r Result) MarshalBinary() ([]byte, error) {
	return encMode.Marshal(r.wire())
}

// UnmarshalBinary восстанавливает конверт из CBOR.
func (r *Result) UnmarshalBinary(data []byte) error {
	var w wireResult
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if w.Version != wireVersion {
		return fmt.Errorf("version %d: %w", w.Version, errWireVersion)
	}
	if w.MemberID == "" {
		return errWireMember
	}
	var outcome Outcome
	var mixed bool
	switch w.Outcome {
	case OutcomeSuccess.String():
		outcome = OutcomeSuccess
		mixed = w.Code != CodeNone || w.Detail != ""
	case OutcomeDomainFailure.String():
		outcome = OutcomeDomainFailure
		mixed = w.Detail != "" || len(w.Values) > 0 || w.Entity != nil
	case OutcomeFatalFailure.String():
		outcome = OutcomeFatalFailure
		mixed = w.Message != "" || w.Code != CodeNone || len(w.Values) > 0 || w.Entity != nil
	default:
		return fmt.Errorf("%q: %w", w.Outcome, errWireOutcome)
	}
	if mixed {
		return fmt.Errorf("%s: %w", w.Outcome, errWireMixed)
	}
	*r = Result{
		memberID: w.MemberID,
		outcome:  outcome,
		message:  w.Message,
		code:     w.Code,
		detail:   w.Detail,
		values:   clone(w.Values),
		entity:   w.Entity,
	}
	return nil
}

// MarshalJSON отдает конверт в виде, пригодном для ответа транспорта.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}
