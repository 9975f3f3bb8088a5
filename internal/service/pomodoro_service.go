package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/messaging"
	"focusbot/internal/model"
	"focusbot/internal/pomodoro"
	"focusbot/internal/repository"
)

const noPingFlag = "noping"

type MemberFinder interface {
	GetByName(ctx context.Context, name string) (*model.Member, error)
}

type BanStore interface {
	Ban(ctx context.Context, ban *model.Ban) error
	Unban(ctx context.Context, memberID string) error
	IsBanned(ctx context.Context, memberID string) (bool, error)
}

type PomodoroServiceConfig struct {
	Scheduler  *pomodoro.Scheduler
	Feed       *messaging.Feed
	Templates  repository.TemplateStore
	Members    MemberFinder
	Bans       BanStore
	OutboxSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

// PomodoroService runs member commands against the channel sessions owned
// by the scheduler.
type PomodoroService struct {
	scheduler  *pomodoro.Scheduler
	feed       *messaging.Feed
	templates  repository.TemplateStore
	members    MemberFinder
	bans       BanStore
	outboxSize int
	now        func() time.Time
}

func NewPomodoroService(cfg PomodoroServiceConfig) *PomodoroService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PomodoroService{
		scheduler:  cfg.Scheduler,
		feed:       cfg.Feed,
		templates:  cfg.Templates,
		members:    cfg.Members,
		bans:       cfg.Bans,
		outboxSize: cfg.OutboxSize,
		now:        now,
	}
}

type commandRequest struct {
	channelID string
	member    model.Member
	command   pomodoro.Command
	args      string
}

// Execute runs a named command for member in channelID and returns the
// reply to show them.
func (s *PomodoroService) Execute(ctx context.Context, channelID string, member model.Member, name, args string) (string, *apperrors.APIError) {
	command, spec, ok := pomodoro.ParseCommand(name)
	if !ok {
		return "", apperrors.BadRequest("unknown_command", fmt.Sprintf("Unknown command '%s'", strings.TrimSpace(name)))
	}
	if spec.AdminOnly && !member.Admin {
		return "", apperrors.Forbidden("You need the admin rank to use this command")
	}
	return s.dispatch(ctx, commandRequest{
		channelID: channelID,
		member:    member,
		command:   command,
		args:      strings.TrimSpace(args),
	})
}

// React runs the command behind an emoji pressed on a session's status
// message.
func (s *PomodoroService) React(ctx context.Context, member model.Member, messageID, emoji string) (string, *apperrors.APIError) {
	handle := pomodoro.MessageHandle(messageID)
	channelID, err := s.feed.React(handle, emoji, member.ID)
	switch {
	case errors.Is(err, messaging.ErrMessageNotFound):
		return "", apperrors.NotFound("message_not_found", "message not found")
	case errors.Is(err, messaging.ErrReactionNotOffered):
		return "", apperrors.BadRequest("invalid_reaction", "that reaction is not available on this message")
	case err != nil:
		return "", s.internal(err, channelID, "react")
	}

	session, ok := s.scheduler.Get(channelID)
	if !ok || session.MessageID() != handle {
		return "", apperrors.BadRequest("stale_message", "Reactions only work on the current status message")
	}

	command, ok := pomodoro.CommandForEmoji(emoji, session.State())
	if !ok {
		return "", apperrors.BadRequest("invalid_reaction", "that reaction does nothing right now")
	}
	spec, _ := pomodoro.Spec(command)
	if spec.AdminOnly && !member.Admin {
		return "", apperrors.Forbidden("You need the admin rank to use this command")
	}

	reply, apiErr := s.dispatch(ctx, commandRequest{channelID: channelID, member: member, command: command})
	if spec.RemoveAfterUse {
		session.RemoveReaction(emoji, member.ID)
	}
	return reply, apiErr
}

func (s *PomodoroService) Session(channelID string) (*pomodoro.View, *apperrors.APIError) {
	session, ok := s.scheduler.Get(channelID)
	if !ok {
		return nil, noSession()
	}
	view := session.View(s.now().UTC())
	return &view, nil
}

func (s *PomodoroService) Messages(channelID string, afterSeq int64) []messaging.Entry {
	return s.feed.List(channelID, afterSeq)
}

func (s *PomodoroService) dispatch(ctx context.Context, req commandRequest) (string, *apperrors.APIError) {
	now := s.now().UTC()

	switch req.command {
	case pomodoro.CommandNew:
		return s.newSession(ctx, req, now)
	case pomodoro.CommandTemplateClear:
		return s.clearTemplate(ctx, req)
	case pomodoro.CommandBan:
		return s.ban(ctx, req, now)
	case pomodoro.CommandUnban:
		return s.unban(ctx, req)
	}

	session, ok := s.scheduler.Get(req.channelID)
	if !ok {
		return "", noSession()
	}

	var reply string
	var err error
	switch req.command {
	case pomodoro.CommandJoin:
		reply, err = s.join(ctx, session, req, now)
	case pomodoro.CommandLeave:
		err = session.Leave(req.member.ID, now)
		reply = "Left the session"
	case pomodoro.CommandEdit:
		if err = session.EditSettings(req.args, now); err == nil {
			reply = session.SettingsText(false)
		}
	case pomodoro.CommandTime:
		reply, err = session.TimeLeft(now)
	case pomodoro.CommandStart:
		err = session.Start(now)
		reply = "Session started"
	case pomodoro.CommandPause:
		err = session.Pause(now)
		reply = "Session paused"
	case pomodoro.CommandResume:
		err = session.Resume(now)
		reply = "Session resumed"
	case pomodoro.CommandSkip:
		err = session.Skip(now)
		reply = "Skipped to " + session.State().Phrase()
	case pomodoro.CommandReset:
		err = session.ResetCurrentInterval(now)
		reply = "Timer reset"
	case pomodoro.CommandBump, pomodoro.CommandBigBump, pomodoro.CommandLower, pomodoro.CommandBigLower:
		reply, err = s.adjustTime(session, req, now)
	case pomodoro.CommandStop:
		if err = session.Stop(now); err == nil {
			s.scheduler.Remove(session)
			reply = "Session stopped"
		}
	case pomodoro.CommandSettings:
		reply = session.SettingsText(false)
	case pomodoro.CommandTemplateSave:
		reply, err = s.saveTemplate(ctx, session, req, now)
	default:
		return "", apperrors.BadRequest("unknown_command", fmt.Sprintf("Unknown command '%s'", req.command))
	}
	if err != nil {
		return "", s.commandError(err, req)
	}
	return reply, nil
}

func (s *PomodoroService) newSession(ctx context.Context, req commandRequest, now time.Time) (string, *apperrors.APIError) {
	if _, ok := s.scheduler.Get(req.channelID); ok {
		return "", apperrors.InvalidArgument("There is already a session running in this channel")
	}

	settings := s.templateSettings(ctx, req.channelID)
	if err := settings.SetFromArguments(req.args); err != nil {
		return "", s.commandError(err, req)
	}

	session := pomodoro.NewSession(pomodoro.SessionConfig{
		ChannelID:  req.channelID,
		Author:     req.member,
		Settings:   settings,
		Surface:    s.feed,
		OutboxSize: s.outboxSize,
	}, now)
	if err := s.scheduler.Register(session); err != nil {
		// Lost a race with another "new"; finish the orphan so its outbox closes.
		_ = session.Stop(now)
		return "", s.commandError(err, req)
	}

	log.Info().
		Str("channel_id", req.channelID).
		Str("member_id", req.member.ID).
		Msg("Session created")
	return "Session created\n" + session.SettingsText(false), nil
}

// templateSettings starts from the channel template when there is a usable
// one, and from defaults otherwise.
func (s *PomodoroService) templateSettings(ctx context.Context, channelID string) *pomodoro.Settings {
	settings := pomodoro.NewSettings()
	if s.templates == nil {
		return settings
	}

	template, err := s.templates.Get(ctx, channelID)
	if err == repository.ErrNotFound {
		return settings
	}
	if err != nil {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to load settings template, using defaults")
		return settings
	}

	var saved pomodoro.Settings
	if err := json.Unmarshal(template.Settings, &saved); err != nil {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("Ignoring invalid settings template")
		return settings
	}
	return &saved
}

func (s *PomodoroService) join(ctx context.Context, session *pomodoro.Session, req commandRequest, now time.Time) (string, error) {
	ping := true
	status := req.args
	if first, rest, _ := strings.Cut(status, " "); strings.EqualFold(first, noPingFlag) {
		ping = false
		status = strings.TrimSpace(rest)
	}

	reply := "Joined the session"
	if status != "" {
		banned, err := s.isBanned(ctx, req.member.ID)
		if err != nil {
			return "", err
		}
		if banned {
			status = ""
			reply = "Joined the session, but you are banned from posting a status"
		}
	}

	if err := session.Join(req.member, ping, status, now); err != nil {
		return "", err
	}
	return reply, nil
}

func (s *PomodoroService) isBanned(ctx context.Context, memberID string) (bool, error) {
	if s.bans == nil {
		return false, nil
	}
	banned, err := s.bans.IsBanned(ctx, memberID)
	if err != nil {
		return false, errors.Wrap(err, "check ban")
	}
	return banned, nil
}

func (s *PomodoroService) adjustTime(session *pomodoro.Session, req commandRequest, now time.Time) (string, error) {
	amount := pomodoro.DefaultShortBump
	if req.command == pomodoro.CommandBigBump || req.command == pomodoro.CommandBigLower {
		amount = pomodoro.DefaultBigBump
	}
	if req.args != "" {
		parsed, err := strconv.Atoi(req.args)
		if err != nil {
			return "", apperrors.InvalidArgument("Please enter a whole number of minutes")
		}
		amount = parsed
	}

	var err error
	if req.command == pomodoro.CommandBump || req.command == pomodoro.CommandBigBump {
		err = session.AddTime(amount, now)
	} else {
		err = session.RemoveTime(amount, now)
	}
	if err != nil {
		return "", err
	}
	return session.TimeLeft(now)
}

func (s *PomodoroService) saveTemplate(ctx context.Context, session *pomodoro.Session, req commandRequest, now time.Time) (string, error) {
	if s.templates == nil {
		return "", apperrors.Internal("templates are not configured")
	}
	data, err := json.Marshal(session.Settings())
	if err != nil {
		return "", errors.Wrap(err, "marshal settings")
	}
	if err := s.templates.Save(ctx, &model.SettingsTemplate{
		ChannelID: req.channelID,
		Settings:  data,
		SavedBy:   req.member.ID,
		UpdatedAt: now,
	}); err != nil {
		return "", err
	}
	return "Saved this session's settings as the channel template", nil
}

func (s *PomodoroService) clearTemplate(ctx context.Context, req commandRequest) (string, *apperrors.APIError) {
	if s.templates == nil {
		return "", apperrors.Internal("templates are not configured")
	}
	err := s.templates.Delete(ctx, req.channelID)
	if err == repository.ErrNotFound {
		return "", apperrors.InvalidArgument("No template saved for this channel")
	}
	if err != nil {
		return "", s.commandError(err, req)
	}
	return "Channel template cleared", nil
}

func (s *PomodoroService) ban(ctx context.Context, req commandRequest, now time.Time) (string, *apperrors.APIError) {
	targets, apiErr := s.mentionedMembers(ctx, req)
	if apiErr != nil {
		return "", apiErr
	}
	names := make([]string, 0, len(targets))
	for _, target := range targets {
		if err := s.bans.Ban(ctx, &model.Ban{MemberID: target.ID, BannedBy: req.member.ID, CreatedAt: now}); err != nil {
			return "", s.commandError(err, req)
		}
		names = append(names, target.Name)
	}
	return "Banned from posting statuses: " + strings.Join(names, ", "), nil
}

func (s *PomodoroService) unban(ctx context.Context, req commandRequest) (string, *apperrors.APIError) {
	targets, apiErr := s.mentionedMembers(ctx, req)
	if apiErr != nil {
		return "", apiErr
	}
	names := make([]string, 0, len(targets))
	for _, target := range targets {
		err := s.bans.Unban(ctx, target.ID)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return "", s.commandError(err, req)
		}
		names = append(names, target.Name)
	}
	if len(names) == 0 {
		return "Nobody to unban", nil
	}
	return "Unbanned: " + strings.Join(names, ", "), nil
}

// mentionedMembers resolves "@name" arguments. Every mention must name a
// registered member.
func (s *PomodoroService) mentionedMembers(ctx context.Context, req commandRequest) ([]model.Member, *apperrors.APIError) {
	if s.members == nil || s.bans == nil {
		return nil, apperrors.Internal("bans are not configured")
	}
	fields := strings.Fields(req.args)
	if len(fields) == 0 {
		return nil, apperrors.InvalidArgument("Mention at least one member, e.g. @name")
	}

	seen := make(map[string]struct{}, len(fields))
	members := make([]model.Member, 0, len(fields))
	for _, field := range fields {
		name := strings.TrimPrefix(field, "@")
		if name == "" {
			continue
		}
		member, err := s.members.GetByName(ctx, name)
		if err == repository.ErrNotFound {
			return nil, apperrors.InvalidArgument("Unknown member: " + name)
		}
		if err != nil {
			return nil, s.commandError(err, req)
		}
		if _, dup := seen[member.ID]; dup {
			continue
		}
		seen[member.ID] = struct{}{}
		members = append(members, *member)
	}
	if len(members) == 0 {
		return nil, apperrors.InvalidArgument("Mention at least one member, e.g. @name")
	}
	return members, nil
}

// commandError converts err for the caller. Anything that is not a user
// error is logged with the command's context.
func (s *PomodoroService) commandError(err error, req commandRequest) *apperrors.APIError {
	apiErr := apperrors.From(err)
	if apiErr.Status >= 500 {
		log.Error().
			Err(err).
			Str("channel_id", req.channelID).
			Str("member_id", req.member.ID).
			Str("command", string(req.command)).
			Msg("Command failed")
	}
	return apiErr
}

func (s *PomodoroService) internal(err error, channelID, action string) *apperrors.APIError {
	log.Error().Err(err).Str("channel_id", channelID).Str("action", action).Msg("Command failed")
	return apperrors.Internal("")
}

func noSession() *apperrors.APIError {
	return apperrors.NotFound("session_not_found", "There is no session in this channel, create one with 'new'")
}
