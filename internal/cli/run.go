package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docquiz/internal/api"
	"docquiz/internal/app"
	"docquiz/internal/config"
	"docquiz/internal/domain"
	"docquiz/internal/timer"
	transport "docquiz/internal/transport/http"
)

// NewRunCmd builds the subcommand that runs a quiz session interactively.
func NewRunCmd() *cobra.Command {
	var (
		documentID   string
		sessionID    string
		numQuestions int
		difficulty   string
		types        []string
		timerSeconds int
		watchAddr    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a quiz session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(configPath)
			if err != nil {
				return err
			}
			cfg := domain.SessionConfig{
				DocumentID:    documentID,
				NumQuestions:  numQuestions,
				Difficulty:    difficulty,
				QuestionTypes: types,
				TimerSeconds:  timerSeconds,
			}
			applyQuizDefaults(&cfg, d.cfg)
			return runQuiz(cmd.Context(), d, cfg, sessionID, watchAddr)
		},
	}

	cmd.Flags().StringVar(&documentID, "document", "", "document id to quiz on")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	cmd.Flags().IntVar(&numQuestions, "questions", 0, "number of questions (1-20)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium, or hard")
	cmd.Flags().StringSliceVar(&types, "types", nil, "question types (mcq,true_false,free_text)")
	cmd.Flags().IntVar(&timerSeconds, "timer", 0, "session time limit in seconds (0 disables)")
	cmd.Flags().StringVar(&watchAddr, "watch-addr", "", "serve a live progress websocket on this address")
	return cmd
}

func applyQuizDefaults(cfg *domain.SessionConfig, fileCfg config.Config) {
	if cfg.NumQuestions == 0 {
		cfg.NumQuestions = fileCfg.Quiz.NumQuestions
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = fileCfg.Quiz.Difficulty
	}
	if len(cfg.QuestionTypes) == 0 {
		cfg.QuestionTypes = fileCfg.Quiz.QuestionTypes
	}
	if len(cfg.QuestionTypes) == 0 {
		cfg.QuestionTypes = []string{
			domain.QuestionTypeMCQ,
			domain.QuestionTypeTrueFalse,
			domain.QuestionTypeFreeText,
		}
	}
	if cfg.TimerSeconds == 0 {
		cfg.TimerSeconds = fileCfg.Quiz.TimerSeconds
	}
}

func runQuiz(ctx context.Context, d deps, cfg domain.SessionConfig, resumeID, watchAddr string) error {
	controller := d.controller

	sessionID := resumeID
	if sessionID == "" {
		result, err := controller.CreateSession(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create session: %s", api.Classify(err).Message)
		}
		sessionID = result.SessionID
		fmt.Printf("Session %s: %d questions, difficulty %s\n", sessionID, result.TotalQuestions, result.Difficulty)
	} else {
		session, err := controller.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("resume session: %s", api.Classify(err).Message)
		}
		fmt.Printf("Resuming session %s: %d/%d answered\n",
			sessionID, session.AnsweredQuestions, session.TotalQuestions)
	}

	if watchAddr != "" {
		serveProgressFeed(ctx, controller, watchAddr,
			config.DurationOr(d.cfg.Quiz.PollInterval, 2*time.Second))
	}

	expired := make(chan struct{})
	finished := make(chan struct{})
	engine := timer.New(sessionID, cfg.TimerSeconds, d.records,
		timer.WithGrace(config.DurationOr(d.cfg.Timer.Grace, 2*time.Second)),
		timer.WithOnExpire(func() { close(expired) }),
		timer.WithOnFinished(func() { close(finished) }),
		timer.WithOnTick(func(remaining int) {
			switch remaining {
			case 60, 30, 10:
				fmt.Printf("\n%ds left\n> ", remaining)
			}
		}),
	)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start timer: %w", err)
	}
	if !engine.Disabled() && engine.State() == timer.StateRunning {
		fmt.Printf("Time limit: %ds remaining\n", engine.Remaining())
	}

	lines := readLines(ctx)
	completed, err := questionLoop(ctx, controller, engine, sessionID, lines, expired)
	if err != nil {
		return err
	}

	if completed {
		if err := engine.Stop(ctx); err != nil {
			log.Printf("stop timer: %v", err)
		}
	} else if !engine.Disabled() && engine.State() == timer.StateExpired {
		fmt.Println("Time's up!")
		// Let the grace delay and record cleanup run before showing results.
		select {
		case <-finished:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return printSummary(ctx, controller, sessionID)
}

// questionLoop walks the session until it completes, time runs out, or the
// user bails. It reports whether the session finished by answering.
func questionLoop(ctx context.Context, controller *app.SessionController, engine *timer.Engine, sessionID string, lines <-chan string, expired <-chan struct{}) (bool, error) {
	for {
		question, err := controller.GetCurrentQuestion(ctx, sessionID)
		if err != nil {
			return false, fmt.Errorf("load question: %s", api.Classify(err).Message)
		}
		if question == nil {
			return true, nil
		}

		printQuestion(question, engine)

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-expired:
			return false, nil
		case line, ok := <-lines:
			if !ok {
				return false, fmt.Errorf("input closed")
			}
			resp, err := controller.SubmitAnswer(ctx, sessionID, question.QuestionID, line, domain.InputMethodTyped)
			if err != nil {
				// Inline, next to the question that caused it; the loop
				// re-renders and the user tries again.
				fmt.Printf("  ! %s\n", api.Classify(err).Message)
				continue
			}
			printResult(resp.Result)
			if resp.SessionComplete {
				return true, nil
			}
		}
	}
}

func printQuestion(q *domain.CurrentQuestion, engine *timer.Engine) {
	fmt.Printf("\n[%d/%d] %s\n", q.QuestionNumber, q.TotalQuestions, q.QuestionText)
	for i, option := range q.Options {
		fmt.Printf("  %c) %s\n", 'a'+i, option)
	}
	if !engine.Disabled() && engine.State() == timer.StateRunning {
		fmt.Printf("(%ds left) ", engine.Remaining())
	}
	fmt.Print("> ")
}

func printResult(result domain.AnswerResult) {
	if result.IsCorrect {
		fmt.Println("Correct!")
	} else {
		fmt.Printf("Incorrect. The answer was: %s\n", result.CorrectAnswer)
	}
	if result.Explanation != nil && *result.Explanation != "" {
		fmt.Printf("  %s\n", *result.Explanation)
	}
	fmt.Printf("Score: %d/%d\n", result.ScoreSoFar, result.TotalAnswered)
}

func printSummary(ctx context.Context, controller *app.SessionController, sessionID string) error {
	session, err := controller.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load results: %s", api.Classify(err).Message)
	}
	fmt.Printf("\nSession %s: %d/%d correct", session.SessionID, session.CorrectAnswers, session.TotalQuestions)
	if session.ScorePercentage != nil {
		fmt.Printf(" (%.1f%%)", *session.ScorePercentage)
	}
	fmt.Println()
	return nil
}

// readLines feeds stdin lines into a channel so the question loop can wait
// on input and timer expiry at the same time.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r\n"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func serveProgressFeed(ctx context.Context, controller *app.SessionController, addr string, poll time.Duration) {
	handler := transport.NewProgressHandler(controller, poll)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("progress feed on ws://%s/ws", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("progress feed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
