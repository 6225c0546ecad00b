package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"snapbet/internal/models"
	"snapbet/internal/store"
)

// Command argument grammar:
//
//	/addbet CeeDee Lamb vs Amon-Ra St. Brown | scoring=PPR snaps=25 weeks=1-18 desc=loser buys wings | @bob @carol
//	/addbet Bijan Robinson over 15.5 | weeks=3-10 | @dave
//	/editbet 12 scoring=HALF weeks=2-17 participants=@bob,@erin
//	/editbet 12 participants=clear
//	/resolvebet 12 force
//
// Segments are separated by '|'. A segment whose tokens all start with '@' is
// the participant list; any other trailing segment holds key=value options.
// Option values may contain spaces: a value runs until the next known key.

var optionKeys = map[string]bool{
	"a":            true,
	"b":            true,
	"scoring":      true,
	"snaps":        true,
	"weeks":        true,
	"line":         true,
	"desc":         true,
	"participants": true,
}

// parseKeyValues splits "scoring=PPR desc=loser buys wings" into a key map,
// letting values run across whitespace until the next known key appears.
func parseKeyValues(s string) (map[string]string, error) {
	out := make(map[string]string)
	current := ""

	for _, token := range strings.Fields(s) {
		if eq := strings.IndexByte(token, '='); eq > 0 {
			key := strings.ToLower(token[:eq])
			if optionKeys[key] {
				if _, dup := out[key]; dup {
					return nil, fmt.Errorf("%w: option %q given twice", models.ErrInvalidInput, key)
				}
				current = key
				out[key] = token[eq+1:]
				continue
			}
		}
		if current == "" {
			return nil, fmt.Errorf("%w: unexpected %q, options look like key=value", models.ErrInvalidInput, token)
		}
		out[current] += " " + token
	}

	for k, v := range out {
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// parseWeeks parses "1-18" or a single week number.
func parseWeeks(s string) (int, int, error) {
	start, end := 0, 0
	if before, after, found := strings.Cut(s, "-"); found {
		var err1, err2 error
		start, err1 = strconv.Atoi(strings.TrimSpace(before))
		end, err2 = strconv.Atoi(strings.TrimSpace(after))
		if err1 != nil || err2 != nil {
			return 0, 0, fmt.Errorf("%w: weeks must look like 1-18", models.ErrInvalidInput)
		}
	} else {
		w, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: weeks must look like 1-18 or a single week", models.ErrInvalidInput)
		}
		start, end = w, w
	}
	if start < 1 || end > 18 || start > end {
		return 0, 0, fmt.Errorf("%w: weeks must be within 1-18 with start <= end", models.ErrInvalidInput)
	}
	return start, end, nil
}

// parseParticipants reads "@bob @carol" or "@bob,@carol" into deduped tags
// without the leading '@'.
func parseParticipants(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	var tags []string
	for _, f := range fields {
		if !strings.HasPrefix(f, "@") || len(f) == 1 {
			return nil, fmt.Errorf("%w: participants are @mentions", models.ErrInvalidInput)
		}
		tags = append(tags, strings.TrimPrefix(f, "@"))
	}
	tags = models.DedupeParticipants(tags)
	if len(tags) > models.MaxParticipants {
		return nil, fmt.Errorf("%w: at most %d participants", models.ErrInvalidInput, models.MaxParticipants)
	}
	return tags, nil
}

func isParticipantSegment(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "@") {
			return false
		}
	}
	return true
}

// parseCondition reads the bet subject: "A vs B" for head-to-head, or
// "A over 15.5" / "A under 12" for a threshold bet.
func parseCondition(s string, bet *models.Bet) error {
	if idx := indexFold(s, " vs "); idx >= 0 {
		bet.Kind = models.KindHeadToHead
		bet.PlayerA = strings.TrimSpace(s[:idx])
		bet.PlayerB = strings.TrimSpace(s[idx+4:])
		if bet.PlayerA == "" || bet.PlayerB == "" {
			return fmt.Errorf("%w: both players are required, like: A vs B", models.ErrInvalidInput)
		}
		return nil
	}

	for _, comp := range []models.Comparator{models.CompOver, models.CompUnder} {
		marker := " " + string(comp) + " "
		if idx := indexFold(s, marker); idx >= 0 {
			player := strings.TrimSpace(s[:idx])
			lineStr := strings.TrimSpace(s[idx+len(marker):])
			line, err := strconv.ParseFloat(lineStr, 64)
			if err != nil || player == "" {
				return fmt.Errorf("%w: threshold bets look like: Player %s 15.5", models.ErrInvalidInput, comp)
			}
			bet.Kind = models.KindThreshold
			bet.PlayerA = player
			bet.Comparator = comp
			bet.Line = line
			return nil
		}
	}

	return fmt.Errorf("%w: say 'A vs B', 'Player over 15.5', or 'Player under 12'", models.ErrInvalidInput)
}

// indexFold is a case-insensitive strings.Index.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}

// applyOptions folds parsed key=value options into the bet.
func applyOptions(opts map[string]string, bet *models.Bet) error {
	for key, value := range opts {
		switch key {
		case "scoring":
			profile, err := models.ParseScoringProfile(strings.ToUpper(value))
			if err != nil {
				return err
			}
			bet.Profile = profile
		case "snaps":
			pct, err := strconv.ParseFloat(value, 64)
			if err != nil || pct < 0 || pct > 100 {
				return fmt.Errorf("%w: snaps must be a percentage between 0 and 100", models.ErrInvalidInput)
			}
			bet.MinSnapPct = pct
		case "weeks":
			start, end, err := parseWeeks(value)
			if err != nil {
				return err
			}
			bet.StartWeek, bet.EndWeek = start, end
		case "desc":
			bet.Description = value
		default:
			return fmt.Errorf("%w: option %q is not valid here", models.ErrInvalidInput, key)
		}
	}
	return nil
}

// parseAddBet builds a new pending bet from /addbet arguments, starting from
// the configured defaults.
func parseAddBet(args string, defaults Defaults) (*models.Bet, error) {
	segments := strings.Split(args, "|")
	condition := strings.TrimSpace(segments[0])
	if condition == "" {
		return nil, fmt.Errorf("%w: usage: /addbet A vs B | scoring=PPR snaps=25 weeks=1-18 | @friends", models.ErrInvalidInput)
	}

	bet := &models.Bet{
		Kind:       models.KindHeadToHead,
		Profile:    defaults.Profile,
		MinSnapPct: defaults.MinSnapPct,
		Season:     defaults.Season,
		StartWeek:  1,
		EndWeek:    18,
		Status:     models.StatusPending,
	}

	if err := parseCondition(condition, bet); err != nil {
		return nil, err
	}

	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if isParticipantSegment(seg) {
			tags, err := parseParticipants(seg)
			if err != nil {
				return nil, err
			}
			bet.Participants = tags
			continue
		}
		opts, err := parseKeyValues(seg)
		if err != nil {
			return nil, err
		}
		if _, ok := opts["participants"]; ok {
			return nil, fmt.Errorf("%w: tag participants in their own segment, like: | @bob @carol", models.ErrInvalidInput)
		}
		if err := applyOptions(opts, bet); err != nil {
			return nil, err
		}
	}

	return bet, nil
}

// parseEditBet reads an /editbet invocation into a bet id and partial update.
func parseEditBet(args string) (int64, store.BetUpdate, error) {
	var upd store.BetUpdate

	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, upd, fmt.Errorf("%w: usage: /editbet <id> key=value ...", models.ErrInvalidInput)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id < 1 {
		return 0, upd, fmt.Errorf("%w: the first argument is the bet id", models.ErrInvalidInput)
	}

	opts, err := parseKeyValues(strings.TrimSpace(strings.TrimPrefix(args, fields[0])))
	if err != nil {
		return 0, upd, err
	}

	for key, value := range opts {
		switch key {
		case "a":
			v := value
			upd.PlayerA = &v
		case "b":
			v := value
			upd.PlayerB = &v
		case "scoring":
			profile, err := models.ParseScoringProfile(strings.ToUpper(value))
			if err != nil {
				return 0, upd, err
			}
			upd.Profile = &profile
		case "snaps":
			pct, err := strconv.ParseFloat(value, 64)
			if err != nil || pct < 0 || pct > 100 {
				return 0, upd, fmt.Errorf("%w: snaps must be a percentage between 0 and 100", models.ErrInvalidInput)
			}
			upd.MinSnapPct = &pct
		case "weeks":
			start, end, err := parseWeeks(value)
			if err != nil {
				return 0, upd, err
			}
			upd.StartWeek = &start
			upd.EndWeek = &end
		case "line":
			line, err := strconv.ParseFloat(value, 64)
			if err != nil || line < 0 {
				return 0, upd, fmt.Errorf("%w: line must be a non-negative number", models.ErrInvalidInput)
			}
			upd.Line = &line
		case "desc":
			v := value
			upd.Description = &v
		case "participants":
			if strings.EqualFold(value, "clear") {
				upd.ClearParticipants = true
				continue
			}
			tags, err := parseParticipants(value)
			if err != nil {
				return 0, upd, err
			}
			upd.Participants = tags
		}
	}

	return id, upd, nil
}
