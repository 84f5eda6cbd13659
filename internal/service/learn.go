package service

import (
	"context"

	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/models"
)

// Learn serves generated farming articles. Every call asks the gateway afresh.
type Learn struct {
	ai    gateway.AI
	guard *inflightGuard
}

func NewLearn(ai gateway.AI) *Learn {
	return &Learn{ai: ai, guard: newInflightGuard()}
}

func (l *Learn) Resources(ctx context.Context, owner string) ([]models.LearningResource, error) {
	key := owner + "/learn"
	if !l.guard.acquire(key) {
		recordBusy("learn")
		return nil, busy()
	}
	defer l.guard.release(key)

	resources, err := l.ai.FetchLearningResources(ctx)
	if err != nil {
		return nil, aiFailure(err, MsgLearnInvalid)
	}
	return resources, nil
}
