package models

import (
	"strings"
	"time"
)

// Document is the storage shape of a settings record: the JSON object tree
// persisted in the settings JSONB column. Values are limited to JSON-native
// types (string, bool, float64, nil, []any, map[string]any).
type Document map[string]any

// ToDocument converts a record to its storage shape. Collections are always
// materialized, never nil.
func (gs *GuildSettings) ToDocument() Document {
	return Document{
		"guildId":             gs.GuildID,
		"prefix":              gs.Prefix,
		"welcomeEnabled":      gs.WelcomeEnabled,
		"welcomeMessage":      gs.WelcomeMessage,
		"goodbyeEnabled":      gs.GoodbyeEnabled,
		"goodbyeMessage":      gs.GoodbyeMessage,
		"welcomeChannel":      nullableToDocument(gs.WelcomeChannel),
		"languageRoles":       stringMapToDocument(gs.LanguageRoles),
		"requiredRoleIds":     stringsToDocument(gs.RequiredRoleIDs),
		"ticketCategoryId":    nullableToDocument(gs.TicketCategoryID),
		"ticketLogChannelId":  nullableToDocument(gs.TicketLogChannelID),
		"ticketOpenMessageId": nullableToDocument(gs.TicketOpenMessageID),
		"supportRoleIds":      stringsToDocument(gs.SupportRoleIDs),
		"logChannelId":        nullableToDocument(gs.LogChannelID),
		"logEvents":           stringsToDocument(gs.LogEvents),
		"translationRoutes":   translationRoutesToDocument(gs.TranslationRoutes),
		"roleGrantRules":      roleGrantRulesToDocument(gs.RoleGrantRules),
		"rulesAnnouncement":   gs.RulesAnnouncement.toDocument(),
		"customCommands":      stringMapToDocument(gs.CustomCommands),
		"autoReplies":         stringMapToDocument(gs.AutoReplies),
		"autoReacts":          stringMapToDocument(gs.AutoReacts),
	}
}

func (ra RulesAnnouncement) toDocument() map[string]any {
	sections := make([]any, 0, len(ra.Sections))
	for _, s := range ra.Sections {
		sections = append(sections, map[string]any{
			"name":   s.Name,
			"value":  s.Value,
			"inline": s.Inline,
		})
	}

	var lastSentAt any
	if ra.LastSentAt != nil {
		lastSentAt = ra.LastSentAt.UTC().Format(time.RFC3339Nano)
	}

	return map[string]any{
		"enabled":            ra.Enabled,
		"title":              ra.Title,
		"description":        ra.Description,
		"color":              ra.Color,
		"sections":           sections,
		"footerText":         ra.FooterText,
		"showThumbnail":      ra.ShowThumbnail,
		"showTimestamp":      ra.ShowTimestamp,
		"acceptButtonText":   ra.AcceptButtonText,
		"declineButtonText":  ra.DeclineButtonText,
		"acceptButtonEmoji":  ra.AcceptButtonEmoji,
		"declineButtonEmoji": ra.DeclineButtonEmoji,
		"autoSend":           ra.AutoSend,
		"targetChannel":      nullableToDocument(ra.TargetChannel),
		"lastMessageId":      nullableToDocument(ra.LastMessageID),
		"lastSentAt":         lastSentAt,
		"lastChannelId":      nullableToDocument(ra.LastChannelID),
	}
}

func translationRoutesToDocument(routes []TranslationRoute) []any {
	out := make([]any, 0, len(routes))
	for _, r := range routes {
		out = append(out, map[string]any{
			"id":         r.ID,
			"name":       r.Name,
			"channelMap": stringMapToDocument(r.ChannelMap),
		})
	}
	return out
}

func roleGrantRulesToDocument(rules []RoleGrantRule) []any {
	out := make([]any, 0, len(rules))
	for _, r := range rules {
		triggerData, _ := CloneValue(r.TriggerData).(map[string]any)
		if triggerData == nil {
			triggerData = map[string]any{}
		}
		out = append(out, map[string]any{
			"id":          r.ID,
			"name":        r.Name,
			"description": r.Description,
			"condition":   string(r.Condition),
			"targetRole":  r.TargetRole,
			"enabled":     r.Enabled,
			"triggerData": triggerData,
		})
	}
	return out
}

func nullableToDocument(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringsToDocument(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func stringMapToDocument(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// DecodePatch reads a loosely typed document (a stored record or a JSON body
// posted by the dashboard) into a patch. Fields with the wrong type are
// treated as absent; list entries with the wrong type are skipped;
// sub-records missing their identifying field are dropped.
func DecodePatch(doc Document) *GuildSettingsPatch {
	p := &GuildSettingsPatch{
		Prefix:              stringField(doc, "prefix"),
		WelcomeEnabled:      boolField(doc, "welcomeEnabled"),
		WelcomeMessage:      stringField(doc, "welcomeMessage"),
		GoodbyeEnabled:      boolField(doc, "goodbyeEnabled"),
		GoodbyeMessage:      stringField(doc, "goodbyeMessage"),
		WelcomeChannel:      nullableField(doc, "welcomeChannel"),
		TicketCategoryID:    nullableField(doc, "ticketCategoryId"),
		TicketLogChannelID:  nullableField(doc, "ticketLogChannelId"),
		TicketOpenMessageID: nullableField(doc, "ticketOpenMessageId"),
		LogChannelID:        nullableField(doc, "logChannelId"),
		RequiredRoleIDs:     stringList(doc["requiredRoleIds"]),
		SupportRoleIDs:      stringList(doc["supportRoleIds"]),
		LogEvents:           stringList(doc["logEvents"]),
		TranslationRoutes:   decodeTranslationRoutes(doc["translationRoutes"]),
		RoleGrantRules:      decodeRoleGrantRules(doc["roleGrantRules"]),
		RulesAnnouncement:   decodeRulesAnnouncement(doc["rulesAnnouncement"]),
	}
	p.LanguageRoles, _ = stringMap(doc["languageRoles"])
	p.CustomCommands, _ = stringMap(doc["customCommands"])
	p.AutoReplies, _ = stringMap(doc["autoReplies"])
	p.AutoReacts, _ = stringMap(doc["autoReacts"])
	return p
}

func decodeTranslationRoutes(v any) []TranslationRoute {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	routes := make([]TranslationRoute, 0, len(items))
	for _, item := range items {
		m, ok := asObject(item)
		if !ok {
			continue
		}
		channels, ok := stringMap(m["channelMap"])
		if !ok {
			continue
		}
		routes = append(routes, TranslationRoute{
			ID:         stringValue(m["id"]),
			Name:       stringValue(m["name"]),
			ChannelMap: channels,
		})
	}
	return routes
}

func decodeRoleGrantRules(v any) []RoleGrantRule {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	rules := make([]RoleGrantRule, 0, len(items))
	for _, item := range items {
		m, ok := asObject(item)
		if !ok {
			continue
		}
		targetRole := strings.TrimSpace(stringValue(m["targetRole"]))
		if targetRole == "" {
			continue
		}

		// An absent or non-string condition falls back to the join trigger;
		// an unknown string is kept so validation can reject it.
		condition := ConditionMemberJoin
		if c, ok := m["condition"].(string); ok {
			condition = RoleGrantCondition(c)
		}

		enabled := true
		if b, ok := m["enabled"].(bool); ok {
			enabled = b
		}

		triggerData, _ := asObject(m["triggerData"])
		rules = append(rules, RoleGrantRule{
			ID:          stringValue(m["id"]),
			Name:        stringValue(m["name"]),
			Description: stringValue(m["description"]),
			Condition:   condition,
			TargetRole:  targetRole,
			Enabled:     enabled,
			TriggerData: triggerData,
		})
	}
	return rules
}

func decodeRulesAnnouncement(v any) *RulesAnnouncementPatch {
	m, ok := asObject(v)
	if !ok {
		return nil
	}
	p := &RulesAnnouncementPatch{
		Enabled:            boolField(m, "enabled"),
		Title:              stringField(m, "title"),
		Description:        stringField(m, "description"),
		Color:              stringField(m, "color"),
		FooterText:         stringField(m, "footerText"),
		ShowThumbnail:      boolField(m, "showThumbnail"),
		ShowTimestamp:      boolField(m, "showTimestamp"),
		AcceptButtonText:   stringField(m, "acceptButtonText"),
		DeclineButtonText:  stringField(m, "declineButtonText"),
		AcceptButtonEmoji:  stringField(m, "acceptButtonEmoji"),
		DeclineButtonEmoji: stringField(m, "declineButtonEmoji"),
		AutoSend:           boolField(m, "autoSend"),
		TargetChannel:      nullableField(m, "targetChannel"),
		LastMessageID:      nullableField(m, "lastMessageId"),
		LastSentAt:         timeField(m, "lastSentAt"),
		LastChannelID:      nullableField(m, "lastChannelId"),
	}

	if items, ok := m["sections"].([]any); ok {
		p.Sections = make([]RuleSection, 0, len(items))
		for _, item := range items {
			s, ok := asObject(item)
			if !ok {
				continue
			}
			inline, _ := s["inline"].(bool)
			p.Sections = append(p.Sections, RuleSection{
				Name:   stringValue(s["name"]),
				Value:  stringValue(s["value"]),
				Inline: inline,
			})
		}
	}
	return p
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case Document:
		return map[string]any(m), m != nil
	default:
		return nil, false
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

func boolField(m map[string]any, key string) *bool {
	if b, ok := m[key].(bool); ok {
		return &b
	}
	return nil
}

// nullableField maps an explicit null to "" (cleared) and a missing or
// wrong-typed value to nil (not supplied).
func nullableField(m map[string]any, key string) *string {
	v, present := m[key]
	if !present {
		return nil
	}
	if v == nil {
		empty := ""
		return &empty
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func timeField(m map[string]any, key string) *time.Time {
	v, present := m[key]
	if !present {
		return nil
	}
	switch t := v.(type) {
	case nil:
		return &time.Time{}
	case time.Time:
		return &t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func stringList(v any) []string {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return cloneStrings(items)
	default:
		return nil
	}
}

func stringMap(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return cloneStringMap(m), m != nil
	default:
		obj, ok := asObject(v)
		if !ok {
			return nil, false
		}
		out := make(map[string]string, len(obj))
		for k, item := range obj {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out, true
	}
}
