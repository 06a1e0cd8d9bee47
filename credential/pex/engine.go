package pex

import (
	"log/slog"
)

// Engine evaluates candidate credentials against presentation definitions.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	logger  *slog.Logger
	decoder TokenDecoder
}

// EngineOpt configures an Engine.
type EngineOpt func(*Engine)

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(logger *slog.Logger) EngineOpt {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTokenDecoder replaces the credential token decoder (default: DecodeToken).
func WithTokenDecoder(decoder TokenDecoder) EngineOpt {
	return func(e *Engine) {
		if decoder != nil {
			e.decoder = decoder
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOpt) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		decoder: defaultDecoder,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type matchState struct {
	cd         *compiledDefinition
	decoded    []*Decoded
	malformed  []*MalformedCredentialError
	matches    [][]int
	resolution *Resolution
}

func (e *Engine) match(candidates []string, pd *PresentationDefinition) (*matchState, error) {
	cd, err := prepare(pd)
	if err != nil {
		return nil, err
	}

	st := &matchState{cd: cd, decoded: make([]*Decoded, len(candidates))}

	for i, token := range candidates {
		dec, err := e.decoder.Decode(token)
		if err != nil {
			e.logger.Warn("skipping malformed credential", "index", i, "error", err)
			st.malformed = append(st.malformed, &MalformedCredentialError{Index: i, Err: err})
			continue
		}

		st.decoded[i] = dec
	}

	st.matches = cd.evaluate(st.decoded)

	st.resolution, err = resolve(cd, st.matches)
	if err != nil {
		return nil, err
	}

	return st, nil
}

// Match reports, per input descriptor, which candidates satisfy it, together
// with the resolution of the submission requirements.
func (e *Engine) Match(candidates []string, pd *PresentationDefinition) (*MatchResult, error) {
	st, err := e.match(candidates, pd)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{
		DefinitionID: pd.ID,
		Matches:      make(map[string][]int),
		Malformed:    st.malformed,
		Resolution:   st.resolution,
	}

	for di, m := range st.matches {
		if len(m) > 0 {
			result.Matches[pd.InputDescriptors[di].ID] = m
		}
	}

	return result, nil
}

// SelectCredentials returns the candidates of the minimal satisfying
// assignment, in presentation order. When the definition cannot be satisfied
// it returns, in input order, every candidate matching at least one descriptor.
func (e *Engine) SelectCredentials(candidates []string, pd *PresentationDefinition) ([]string, error) {
	st, err := e.match(candidates, pd)
	if err != nil {
		return nil, err
	}

	if st.resolution.Satisfied {
		selected := make([]string, 0, len(st.resolution.Assignments))
		for _, ci := range st.resolution.Credentials() {
			selected = append(selected, candidates[ci])
		}

		return selected, nil
	}

	matched := make([]bool, len(candidates))
	for _, m := range st.matches {
		for _, ci := range m {
			matched[ci] = true
		}
	}

	var selected []string
	for ci, ok := range matched {
		if ok {
			selected = append(selected, candidates[ci])
		}
	}

	return selected, nil
}

// SatisfiesPresentationDefinition returns nil when the candidates satisfy pd,
// and an *UnsatisfiedRequirementError naming the failing requirement otherwise.
func (e *Engine) SatisfiesPresentationDefinition(candidates []string, pd *PresentationDefinition) error {
	st, err := e.match(candidates, pd)
	if err != nil {
		return err
	}

	if !st.resolution.Satisfied {
		return st.resolution.Err
	}

	return nil
}

// CreatePresentationFromCredentials selects the credentials satisfying pd and
// wraps them into an unsigned presentation with its presentation submission.
func (e *Engine) CreatePresentationFromCredentials(candidates []string, pd *PresentationDefinition, opts ...PresentationOpt) (*PresentationResult, error) {
	st, err := e.match(candidates, pd)
	if err != nil {
		return nil, err
	}

	if !st.resolution.Satisfied {
		return nil, st.resolution.Err
	}

	result, err := assemble(pd, st.resolution, candidates, st.decoded, opts...)
	if err != nil {
		return nil, err
	}

	e.logger.Info("presentation assembled",
		"definition_id", pd.ID,
		"submission_id", result.PresentationSubmission.ID,
		"credentials", len(result.Credentials),
		"location", string(result.SubmissionLocation),
	)

	return result, nil
}

// SelectCredentials runs Engine.SelectCredentials with a default engine.
func SelectCredentials(candidates []string, pd *PresentationDefinition) ([]string, error) {
	return NewEngine().SelectCredentials(candidates, pd)
}

// SatisfiesPresentationDefinition runs Engine.SatisfiesPresentationDefinition with a default engine.
func SatisfiesPresentationDefinition(candidates []string, pd *PresentationDefinition) error {
	return NewEngine().SatisfiesPresentationDefinition(candidates, pd)
}

// CreatePresentationFromCredentials runs Engine.CreatePresentationFromCredentials with a default engine.
func CreatePresentationFromCredentials(candidates []string, pd *PresentationDefinition, opts ...PresentationOpt) (*PresentationResult, error) {
	return NewEngine().CreatePresentationFromCredentials(candidates, pd, opts...)
}
