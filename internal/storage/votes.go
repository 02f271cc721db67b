package storage

import (
	"context"
	"fmt"

	"clipstash/internal/models"
)

// CastVote applies toggle/replace semantics for a user's vote on a clip and
// adjusts the derived counts in the same committed write, so the ledger and
// the record can never disagree. The whole sequence holds the video's
// resource token.
//
// First vote inserts the choice; repeating the same choice removes it;
// casting the opposite choice replaces it.
func (s *Storage) CastVote(ctx context.Context, videoID, userID string, choice models.VoteChoice) (models.Video, error) {
	if choice != models.VoteLike && choice != models.VoteDislike {
		return models.Video{}, fmt.Errorf("vote %q: %w", choice, ErrInvalidArgument)
	}
	if userID == "" {
		return models.Video{}, fmt.Errorf("userId is required: %w", ErrInvalidArgument)
	}

	release, err := s.locks.acquire(ctx, videoKey(videoID))
	if err != nil {
		return models.Video{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	originalVideo := video

	ledger := s.data.Votes[videoID]
	previous, voted := "", false
	if ledger != nil {
		var prior models.VoteChoice
		prior, voted = ledger[userID]
		previous = string(prior)
	}

	var likeDelta, dislikeDelta int
	switch {
	case !voted:
		likeDelta, dislikeDelta = voteDeltas(choice, +1)
	case models.VoteChoice(previous) == choice:
		likeDelta, dislikeDelta = voteDeltas(choice, -1)
	default:
		oldLike, oldDislike := voteDeltas(models.VoteChoice(previous), -1)
		newLike, newDislike := voteDeltas(choice, +1)
		likeDelta, dislikeDelta = oldLike+newLike, oldDislike+newDislike
	}

	if ledger == nil {
		ledger = make(map[string]models.VoteChoice)
		s.data.Votes[videoID] = ledger
	}
	if voted && models.VoteChoice(previous) == choice {
		delete(ledger, userID)
	} else {
		ledger[userID] = choice
	}

	video.Likes = clampCount(video.Likes + likeDelta)
	video.Dislikes = clampCount(video.Dislikes + dislikeDelta)
	video.UpdatedAt = s.now()
	s.data.Videos[videoID] = video

	if err := s.persist(); err != nil {
		s.data.Videos[videoID] = originalVideo
		s.restoreVoteLocked(videoID, userID, previous, voted)
		return models.Video{}, err
	}
	return video, nil
}

// GetVote returns the user's active vote on the clip, if any.
func (s *Storage) GetVote(videoID, userID string) (models.VoteChoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ledger := s.data.Votes[videoID]
	if ledger == nil {
		return "", false
	}
	choice, ok := ledger[userID]
	return choice, ok
}

func (s *Storage) restoreVoteLocked(videoID, userID, previous string, voted bool) {
	ledger := s.data.Votes[videoID]
	if ledger == nil {
		return
	}
	if voted {
		ledger[userID] = models.VoteChoice(previous)
	} else {
		delete(ledger, userID)
	}
	if len(ledger) == 0 {
		delete(s.data.Votes, videoID)
	}
}

func voteDeltas(choice models.VoteChoice, sign int) (likeDelta, dislikeDelta int) {
	if choice == models.VoteLike {
		return sign, 0
	}
	return 0, sign
}

func clampCount(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
