// Package workflow implements the session state machine that sequences
// intent gating, compatibility checking, retrieval, answer synthesis and
// step-by-step delivery across asynchronous user turns.
package workflow

import (
	"context"
	"log"

	"ableton-smart-assistant/pkg/embedding"
	"ableton-smart-assistant/pkg/guide/answer"
	"ableton-smart-assistant/pkg/guide/interaction"
	"ableton-smart-assistant/pkg/guide/lang"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/guide/validate"
	"ableton-smart-assistant/pkg/llm"
	"ableton-smart-assistant/pkg/retrieval"
)

// Stage identifies one node of the session graph.
type Stage string

const (
	StageDetectIntent             Stage = "detect_intent"
	StageCheckCompatibility       Stage = "check_compatibility"
	StageAwaitCompatibilityChoice Stage = "await_compatibility_choice"
	StageRetrieve                 Stage = "retrieve"
	StageGenerateAnswer           Stage = "generate_answer"
	StageAwaitStepChoice          Stage = "await_step_choice"
	StageStartSteps               Stage = "start_steps"
	StageClassifyInteraction      Stage = "classify_interaction"
	StageLocateControl            Stage = "locate_control"
	StageAwaitUserAction          Stage = "await_user_action"
	StageValidate                 Stage = "validate"
	StageAdvance                  Stage = "advance"
	StageFinalConfirmation        Stage = "final_confirmation"
	StageFallbackReview           Stage = "fallback_review"
	StageEnd                      Stage = "end"
)

// maxIterationsPerTurn caps graph cycles within a single turn so a
// pathological loop degrades into a could-not-complete response instead of
// hanging the request.
const maxIterationsPerTurn = 20

// DefaultGeneralTopK is how many general fragments ground an answer.
const DefaultGeneralTopK = 5

// handler runs one stage. resumed is true only for the first stage of a turn
// that re-enters an awaiting-input stage with a fresh user decision. The
// returned pause halts the turn with the session persisted as awaiting input.
type handler func(ctx context.Context, sess *session.Session, resumed bool) (next Stage, pause bool)

// Workflow owns the transition table and the collaborators every stage needs.
// It is stateless between turns; all turn state lives on the session.
type Workflow struct {
	embedder   embedding.Provider
	store      *retrieval.Store
	synth      *answer.Synthesizer
	classifier *interaction.Classifier
	validator  *validate.Validator
	llm        llm.Provider
	logger     *log.Logger
	topK       int

	handlers map[Stage]handler
}

func New(
	embedder embedding.Provider,
	store *retrieval.Store,
	synth *answer.Synthesizer,
	classifier *interaction.Classifier,
	validator *validate.Validator,
	llmProvider llm.Provider,
	logger *log.Logger,
) *Workflow {
	w := &Workflow{
		embedder:   embedder,
		store:      store,
		synth:      synth,
		classifier: classifier,
		validator:  validator,
		llm:        llmProvider,
		logger:     logger,
		topK:       DefaultGeneralTopK,
	}
	w.handlers = map[Stage]handler{
		StageDetectIntent:             w.detectIntent,
		StageCheckCompatibility:       w.checkCompatibility,
		StageAwaitCompatibilityChoice: w.awaitCompatibilityChoice,
		StageRetrieve:                 w.retrieve,
		StageGenerateAnswer:           w.generateAnswer,
		StageAwaitStepChoice:          w.awaitStepChoice,
		StageStartSteps:               w.startSteps,
		StageClassifyInteraction:      w.classifyInteraction,
		StageLocateControl:            w.locateControl,
		StageAwaitUserAction:          w.awaitUserAction,
		StageValidate:                 w.validateStep,
		StageAdvance:                  w.advance,
		StageFinalConfirmation:        w.finalConfirmation,
		StageFallbackReview:           w.fallbackReview,
	}
	return w
}

// SetTopK overrides how many general fragments ground an answer.
func (w *Workflow) SetTopK(k int) {
	if k > 0 {
		w.topK = k
	}
}

// awaitingStages maps the persisted awaiting-input markers onto graph stages.
var awaitingStages = map[string]Stage{
	session.AwaitCompatibilityChoice: StageAwaitCompatibilityChoice,
	session.AwaitStepChoice:          StageAwaitStepChoice,
	session.AwaitUserAction:          StageAwaitUserAction,
	session.AwaitCompletionChoice:    StageFinalConfirmation,
}

// EntryStage resolves where a turn resumes: the recorded awaiting stage, the
// synthesis stage for sessions seeded with a pre-supplied answer, or the
// graph entry for everything else.
func (w *Workflow) EntryStage(sess *session.Session) Stage {
	if stage, ok := awaitingStages[sess.AwaitingStage]; ok {
		return stage
	}
	if sess.SeededAnswer && sess.Answer != "" && len(sess.Steps) == 0 {
		return StageGenerateAnswer
	}
	return StageDetectIntent
}

// Run executes the graph from the session's entry stage until it reaches the
// terminal stage or pauses awaiting input, then returns the presented text.
// The session is mutated in place; callers persist it afterwards.
func (w *Workflow) Run(ctx context.Context, sess *session.Session) string {
	return w.RunFrom(ctx, sess, w.EntryStage(sess))
}

// RunFrom executes the graph from an explicit stage. Used by Run and by the
// review re-entry path after a delivery restart.
func (w *Workflow) RunFrom(ctx context.Context, sess *session.Session, stage Stage) string {
	resumed := sess.AwaitingStage != ""
	sess.ResponseText = ""

	for iterations := 0; ; iterations++ {
		if stage == StageEnd {
			sess.AwaitingStage = ""
			break
		}
		if iterations >= maxIterationsPerTurn {
			w.logger.Printf("[ERROR] Iteration cap hit for session %s at stage %s", sess.ID, stage)
			sess.ResponseText = lang.Message(lang.MsgCouldNotComplete, sess.Query)
			break
		}

		h, ok := w.handlers[stage]
		if !ok {
			w.logger.Printf("[ERROR] Unknown stage %q for session %s", stage, sess.ID)
			sess.ResponseText = lang.Message(lang.MsgInternalError, sess.Query)
			break
		}

		next, pause := h(ctx, sess, resumed)
		resumed = false
		w.checkCursor(sess, stage)

		if pause {
			break
		}
		stage = next
	}

	if sess.ResponseText == "" {
		if sess.Answer != "" {
			sess.ResponseText = sess.Answer
		} else {
			sess.ResponseText = lang.Message(lang.MsgInternalError, sess.Query)
		}
	}
	return sess.ResponseText
}

// checkCursor enforces the cursor invariant after every transition.
func (w *Workflow) checkCursor(sess *session.Session, stage Stage) {
	if sess.Cursor < 0 {
		w.logger.Printf("[WARN] Cursor below zero after %s, clamping", stage)
		sess.Cursor = 0
	}
	if sess.Cursor > len(sess.Steps) {
		w.logger.Printf("[WARN] Cursor past step count after %s, clamping", stage)
		sess.Cursor = len(sess.Steps)
	}
}

// queryVector embeds the session query for retrieval. Embedding failures
// degrade to an empty vector, which scores zero everywhere but keeps the turn
// alive.
func (w *Workflow) queryVector(ctx context.Context, sess *session.Session) []float32 {
	if w.embedder == nil {
		return nil
	}
	vec, err := w.embedder.Generate(ctx, sess.Query)
	if err != nil {
		w.logger.Printf("[WARN] Query embedding failed: %v", err)
		return nil
	}
	return vec
}
