package fibbingit

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/catalog"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

const gameName = "fibbing_it"

// QuestionSource fetches random question content from the catalog service.
// Implemented by *catalog.Client; an interface here keeps the engine
// testable without a live HTTP server.
type QuestionSource interface {
	GetRandomGroups(ctx context.Context, gameName, round string, limit int) (catalog.QuestionGroups, error)
	GetRandomQuestions(ctx context.Context, gameName, round, groupName string, limit int) ([]catalog.Question, error)
}

// FetchRounds draws this match's full question set from the catalog,
// mirroring the original GetQuestions orchestration: opinion and free_form
// rounds are sourced per random group (so the fibber's decoy question is a
// plausible swap within the same topic), likely rounds use player
// nicknames as the answer set.
func (e Engine) FetchRounds(ctx context.Context, source QuestionSource, players []types.Player) (types.FibbingItRounds, error) {
	var rounds types.FibbingItRounds
	limit := e.QuestionsPerRound
	if limit == 0 {
		limit = DefaultQuestionsPerRound
	}

	for _, round := range types.Rounds {
		questions, err := e.fetchRound(ctx, source, players, round, limit)
		if err != nil {
			return types.FibbingItRounds{}, err
		}

		switch round {
		case types.RoundOpinion:
			rounds.Opinion = questions
		case types.RoundLikely:
			rounds.Likely = questions
		case types.RoundFreeForm:
			rounds.FreeForm = questions
		}
	}

	return rounds, nil
}

func (e Engine) fetchRound(ctx context.Context, source QuestionSource, players []types.Player, round types.Round, limit int) ([]types.FibbingItQuestion, error) {
	if !types.RoundsWithGroups[round] {
		return e.fetchUngroupedRound(ctx, source, players, round, limit)
	}
	return e.fetchGroupedRound(ctx, source, round, limit)
}

func (e Engine) fetchGroupedRound(ctx context.Context, source QuestionSource, round types.Round, limit int) ([]types.FibbingItQuestion, error) {
	groups, err := source.GetRandomGroups(ctx, gameName, string(round), limit)
	if err != nil {
		return nil, err
	}

	questions := make([]types.FibbingItQuestion, 0, len(groups.Groups))
	for _, group := range groups.Groups {
		inGroup, err := source.GetRandomQuestions(ctx, gameName, string(round), group, 0)
		if err != nil {
			return nil, err
		}

		q, err := buildGroupedQuestion(round, inGroup)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	return questions, nil
}

func buildGroupedQuestion(round types.Round, inGroup []catalog.Question) (types.FibbingItQuestion, error) {
	switch round {
	case types.RoundOpinion:
		var questionContent, answerContent []string
		for _, q := range inGroup {
			if q.Type == "answer" {
				answerContent = append(answerContent, q.Content)
			} else {
				questionContent = append(questionContent, q.Content)
			}
		}
		if len(questionContent) < 2 {
			return types.FibbingItQuestion{}, gameerrors.NoAnswersFound(0)
		}
		fibberQuestion, realQuestion := sampleTwo(questionContent)
		return types.FibbingItQuestion{FibberQuestion: fibberQuestion, Question: realQuestion, Answers: answerContent}, nil

	case types.RoundFreeForm:
		content := make([]string, 0, len(inGroup))
		for _, q := range inGroup {
			content = append(content, q.Content)
		}
		if len(content) < 2 {
			return types.FibbingItQuestion{}, gameerrors.NoAnswersFound(0)
		}
		fibberQuestion, realQuestion := sampleTwo(content)
		return types.FibbingItQuestion{FibberQuestion: fibberQuestion, Question: realQuestion}, nil

	default:
		return types.FibbingItQuestion{}, gameerrors.InvalidGameRound(fmt.Sprintf("%s", round))
	}
}

func (e Engine) fetchUngroupedRound(ctx context.Context, source QuestionSource, players []types.Player, round types.Round, limit int) ([]types.FibbingItQuestion, error) {
	questions, err := source.GetRandomQuestions(ctx, gameName, string(round), "", limit)
	if err != nil {
		return nil, err
	}

	nicknames := make([]string, 0, len(players))
	for _, p := range players {
		nicknames = append(nicknames, p.Nickname)
	}

	out := make([]types.FibbingItQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, types.FibbingItQuestion{
			FibberQuestion: "",
			Question:       q.Content,
			Answers:        nicknames,
		})
	}
	return out, nil
}

func sampleTwo(items []string) (string, string) {
	perm := rand.Perm(len(items))
	return items[perm[0]], items[perm[1]]
}
