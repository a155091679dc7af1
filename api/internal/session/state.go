package session

import (
	"errors"

	"nutrisnap/api/internal/gateway"
	"nutrisnap/api/internal/nutrition"
)

var errEmptyAnalysis = &gateway.ServiceError{Op: gateway.OpAnalyze, Err: errors.New("empty response")}

// State is everything the view renders. The zero value is the initial state.
// Transitions live on *State and do no I/O; the Controller serializes them.
type State struct {
	Image   *nutrition.Image
	Result  *nutrition.Analysis
	History []nutrition.HistoryEntry
	Err     string
	Busy    bool
}

func (s *State) selectImage(img nutrition.Image) bool {
	if !nutrition.IsImage(img.MediaType) {
		return false
	}
	if img.Size == 0 {
		img.Size = int64(len(img.Data))
	}
	s.Image = &img
	return true
}

func (s *State) beginAnalyze() (nutrition.Image, bool) {
	if s.Image == nil || s.Busy {
		return nutrition.Image{}, false
	}
	s.Err = ""
	s.Busy = true
	return *s.Image, true
}

// settleAnalyze stores a fresh copy of res so every successful analysis has
// its own identity, and drops any lookup the copy might carry.
func (s *State) settleAnalyze(res *nutrition.Analysis, err error) error {
	s.Busy = false
	if err == nil && res == nil {
		err = errEmptyAnalysis
	}
	if err != nil {
		s.Err = err.Error()
		return err
	}
	r := res.Clone()
	r.NutritionLookup = nil
	s.Result = r
	return nil
}

func (s *State) beginHistory() {
	s.Err = ""
}

func (s *State) settleHistory(entries []nutrition.HistoryEntry, err error) {
	if err != nil {
		s.Err = err.Error()
		return
	}
	if entries == nil {
		entries = []nutrition.HistoryEntry{}
	}
	s.History = entries
}

// beginVerify returns the analysis the lookup must attach to.
func (s *State) beginVerify() (*nutrition.Analysis, string, bool) {
	if s.Result == nil || s.Result.Food == "" {
		return nil, "", false
	}
	s.Err = ""
	return s.Result, s.Result.Food, true
}

// settleVerify merges lookup into target if target is still the current
// result. It reports whether the lookup was attached.
func (s *State) settleVerify(target *nutrition.Analysis, lookup nutrition.Lookup, err error) bool {
	if err != nil {
		s.Err = err.Error()
		return false
	}
	if s.Result == nil || s.Result != target {
		return false
	}
	s.Result.NutritionLookup = lookup.Clone()
	return true
}

// reset clears display state; Busy belongs to the in-flight analysis.
func (s *State) reset() {
	s.Image = nil
	s.Result = nil
	s.History = nil
	s.Err = ""
}

// Snapshot is a deep copy of State plus the derived flags the view uses to
// decide which operations are reachable.
type Snapshot struct {
	Image   *nutrition.Image
	Result  *nutrition.Analysis
	History []nutrition.HistoryEntry
	Err     string
	Busy    bool

	CanAnalyze bool
	CanVerify  bool
	CanExport  bool
}

func (s *State) snapshot() Snapshot {
	out := Snapshot{
		Result:     s.Result.Clone(),
		Err:        s.Err,
		Busy:       s.Busy,
		CanAnalyze: s.Image != nil && !s.Busy,
		CanVerify:  s.Result != nil && s.Result.Food != "",
		CanExport:  s.Result != nil,
	}
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.History != nil {
		out.History = append([]nutrition.HistoryEntry{}, s.History...)
	}
	return out
}
