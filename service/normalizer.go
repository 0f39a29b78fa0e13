package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"guildconfig/models"

	"github.com/google/uuid"
)

// subRecordNamespace seeds the name-based IDs given to sub-records stored without one
var subRecordNamespace = uuid.MustParse("6f1c2f3e-8a4b-5c2d-9e7f-1a2b3c4d5e6f")

const (
	kindTranslationRoute = "translation-route"
	kindRoleGrantRule    = "role-grant-rule"
)

// NormalizeDocument decodes a stored (or caller supplied) document leniently
// and canonicalizes it. Fields that are missing or of the wrong type take
// their default value. The guild ID always comes from the caller.
func NormalizeDocument(guildID string, raw models.Document) *models.GuildSettings {
	settings := models.DefaultGuildSettings(guildID)
	if raw != nil {
		settings = Merge(settings, models.DecodePatch(raw))
	}
	settings.GuildID = guildID
	return Normalize(settings)
}

// Normalize returns the canonical form of settings. It never mutates its
// input and Normalize(Normalize(x)) equals Normalize(x).
func Normalize(settings *models.GuildSettings) *models.GuildSettings {
	if settings == nil {
		return models.DefaultGuildSettings("")
	}
	gs := settings.Clone()
	gs.GuildID = strings.TrimSpace(gs.GuildID)

	gs.Prefix = strings.TrimSpace(gs.Prefix)
	if gs.Prefix == "" {
		gs.Prefix = models.DefaultPrefix
	}
	gs.WelcomeMessage = strings.TrimSpace(gs.WelcomeMessage)
	gs.GoodbyeMessage = strings.TrimSpace(gs.GoodbyeMessage)

	gs.WelcomeChannel = cleanNullable(gs.WelcomeChannel)
	gs.TicketCategoryID = cleanNullable(gs.TicketCategoryID)
	gs.TicketLogChannelID = cleanNullable(gs.TicketLogChannelID)
	gs.TicketOpenMessageID = cleanNullable(gs.TicketOpenMessageID)
	gs.LogChannelID = cleanNullable(gs.LogChannelID)

	gs.LanguageRoles = normalizeLanguageRoles(gs.LanguageRoles)
	gs.RequiredRoleIDs = cleanRoleIDs(gs.RequiredRoleIDs)
	gs.SupportRoleIDs = cleanRoleIDs(gs.SupportRoleIDs)
	gs.LogEvents = normalizeLogEvents(gs.LogEvents)

	gs.TranslationRoutes = normalizeTranslationRoutes(gs.GuildID, gs.TranslationRoutes)
	gs.RoleGrantRules = normalizeRoleGrantRules(gs.GuildID, gs.RoleGrantRules)
	gs.RulesAnnouncement = normalizeRulesAnnouncement(gs.RulesAnnouncement)

	gs.CustomCommands = normalizeStringMap(gs.CustomCommands)
	gs.AutoReplies = normalizeStringMap(gs.AutoReplies)
	gs.AutoReacts = normalizeStringMap(gs.AutoReacts)

	return gs
}

func cleanNullable(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeLanguageRoles keeps exactly the known language codes. Values that
// are not role IDs are reset to "".
func normalizeLanguageRoles(roles map[string]string) map[string]string {
	out := make(map[string]string, len(models.LanguageCodes))
	for _, code := range models.LanguageCodes {
		roleID := strings.TrimSpace(roles[code])
		if !models.IsSnowflake(roleID) {
			roleID = ""
		}
		out[code] = roleID
	}
	return out
}

func cleanRoleIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if models.IsSnowflake(id) {
			out = append(out, id)
		}
	}
	return out
}

func normalizeLogEvents(events []string) []string {
	out := make([]string, 0, len(events))
	seen := make(map[string]bool, len(events))
	for _, event := range events {
		event = strings.TrimSpace(event)
		if !models.IsLogEvent(event) || seen[event] {
			continue
		}
		seen[event] = true
		out = append(out, event)
	}
	return out
}

// idAllocator hands out unique sub-record IDs within one list. Explicit IDs
// are reserved up front so a generated ID never shadows a later entry.
type idAllocator struct {
	guildID  string
	kind     string
	used     map[string]bool
	explicit map[string]bool
}

func newIDAllocator(guildID, kind string, explicitIDs []string) *idAllocator {
	a := &idAllocator{
		guildID:  guildID,
		kind:     kind,
		used:     make(map[string]bool, len(explicitIDs)),
		explicit: make(map[string]bool, len(explicitIDs)),
	}
	for _, id := range explicitIDs {
		if id != "" {
			a.explicit[id] = true
		}
	}
	return a
}

// claim registers an explicit ID. It returns false for a duplicate.
func (a *idAllocator) claim(id string) bool {
	if a.used[id] {
		return false
	}
	a.used[id] = true
	return true
}

// generate derives a stable ID from the entry's position and name
func (a *idAllocator) generate(index int, name string) string {
	for salt := 0; ; salt++ {
		seed := fmt.Sprintf("%s/%s/%d/%s", a.guildID, a.kind, index, name)
		if salt > 0 {
			seed += "#" + strconv.Itoa(salt)
		}
		id := uuid.NewSHA1(subRecordNamespace, []byte(seed)).String()
		if !a.used[id] && !a.explicit[id] {
			a.used[id] = true
			return id
		}
	}
}

func normalizeTranslationRoutes(guildID string, routes []models.TranslationRoute) []models.TranslationRoute {
	explicit := make([]string, 0, len(routes))
	for _, r := range routes {
		explicit = append(explicit, strings.TrimSpace(r.ID))
	}
	ids := newIDAllocator(guildID, kindTranslationRoute, explicit)

	out := make([]models.TranslationRoute, 0, len(routes))
	for i, route := range routes {
		if route.ChannelMap == nil {
			continue
		}
		name := strings.TrimSpace(route.Name)
		if name == "" {
			name = fmt.Sprintf("Translation route %d", len(out)+1)
		}
		id := strings.TrimSpace(route.ID)
		if id == "" {
			id = ids.generate(i, name)
		} else if !ids.claim(id) {
			continue
		}

		out = append(out, models.TranslationRoute{
			ID:         id,
			Name:       name,
			ChannelMap: normalizeStringMap(route.ChannelMap),
		})
	}
	return out
}

func normalizeRoleGrantRules(guildID string, rules []models.RoleGrantRule) []models.RoleGrantRule {
	explicit := make([]string, 0, len(rules))
	for _, r := range rules {
		explicit = append(explicit, strings.TrimSpace(r.ID))
	}
	ids := newIDAllocator(guildID, kindRoleGrantRule, explicit)

	out := make([]models.RoleGrantRule, 0, len(rules))
	for i, rule := range rules {
		targetRole := strings.TrimSpace(rule.TargetRole)
		if targetRole == "" {
			continue
		}
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			name = fmt.Sprintf("Role rule %d", len(out)+1)
		}
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			id = ids.generate(i, name)
		} else if !ids.claim(id) {
			continue
		}

		condition := models.RoleGrantCondition(strings.TrimSpace(string(rule.Condition)))
		if condition == "" {
			condition = models.ConditionMemberJoin
		}

		canonical, _ := canonicalValue(rule.TriggerData)
		triggerData, _ := canonical.(map[string]any)
		if triggerData == nil {
			triggerData = map[string]any{}
		}

		out = append(out, models.RoleGrantRule{
			ID:          id,
			Name:        name,
			Description: strings.TrimSpace(rule.Description),
			Condition:   condition,
			TargetRole:  targetRole,
			Enabled:     rule.Enabled,
			TriggerData: triggerData,
		})
	}
	return out
}

// canonicalValue reduces arbitrary values to the JSON-native set so that a
// record compares equal before and after a storage round-trip. It reports
// false for values JSON cannot carry, such as NaN, which callers drop.
func canonicalValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, true
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case map[string]any:
		if val == nil {
			return nil, true
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			if c, ok := canonicalValue(item); ok {
				out[k] = c
			}
		}
		return out, true
	case map[string]string:
		if val == nil {
			return nil, true
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out, true
	case []any:
		if val == nil {
			return nil, true
		}
		out := make([]any, 0, len(val))
		for _, item := range val {
			if c, ok := canonicalValue(item); ok {
				out = append(out, c)
			}
		}
		return out, true
	case []string:
		if val == nil {
			return nil, true
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out, true
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, false
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, false
		}
		return canonicalValue(decoded)
	}
}

func finite(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func normalizeRulesAnnouncement(ra models.RulesAnnouncement) models.RulesAnnouncement {
	ra.Title = strings.TrimSpace(ra.Title)
	ra.Description = strings.TrimSpace(ra.Description)
	ra.FooterText = strings.TrimSpace(ra.FooterText)

	ra.Color = strings.ToUpper(strings.TrimSpace(ra.Color))
	if ra.Color == "" {
		ra.Color = models.DefaultRulesColor
	}

	ra.AcceptButtonText = strings.TrimSpace(ra.AcceptButtonText)
	if ra.AcceptButtonText == "" {
		ra.AcceptButtonText = models.DefaultRulesAcceptButtonText
	}
	ra.DeclineButtonText = strings.TrimSpace(ra.DeclineButtonText)
	if ra.DeclineButtonText == "" {
		ra.DeclineButtonText = models.DefaultRulesDeclineButtonText
	}
	ra.AcceptButtonEmoji = strings.TrimSpace(ra.AcceptButtonEmoji)
	ra.DeclineButtonEmoji = strings.TrimSpace(ra.DeclineButtonEmoji)

	sections := make([]models.RuleSection, 0, len(ra.Sections))
	for _, s := range ra.Sections {
		s.Name = strings.TrimSpace(s.Name)
		s.Value = strings.TrimSpace(s.Value)
		if s.Name == "" && s.Value == "" {
			continue
		}
		sections = append(sections, s)
	}
	ra.Sections = sections

	ra.TargetChannel = cleanNullable(ra.TargetChannel)
	ra.LastMessageID = cleanNullable(ra.LastMessageID)
	ra.LastChannelID = cleanNullable(ra.LastChannelID)
	ra.LastSentAt = canonicalTime(ra.LastSentAt)
	return ra
}

// canonicalTime stores instants in UTC at millisecond precision. A zero
// time means "never".
func canonicalTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	c := t.UTC().Truncate(time.Millisecond)
	return &c
}

// normalizeStringMap trims keys and values and drops empty entries. Keys are
// visited in sorted order and an untrimmed key never overrides the entry
// stored under the exact trimmed key, so collisions resolve the same way
// every time.
func normalizeStringMap(in map[string]string) map[string]string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(in))
	for _, k := range keys {
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(in[k])
		if key == "" || value == "" {
			continue
		}
		if _, taken := out[key]; taken && key != k {
			continue
		}
		out[key] = value
	}
	return out
}
