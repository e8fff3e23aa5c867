package proxy

import (
	"errors"
	"fmt"
	"sync"

	"proxybot/internal/database/models"
	"proxybot/internal/types"
)

// fakeStore is an in-memory types.Store with per-call failure switches.
type fakeStore struct {
	mu sync.Mutex

	profiles   map[string]*models.Profile
	autoproxy  map[string]models.AutoproxySettings
	blacklists map[string]models.Blacklist
	webhooks   map[string]models.WebhookCredentials
	switches   []models.SwitchRecord

	failAll       bool
	failBlacklist bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:   make(map[string]*models.Profile),
		autoproxy:  make(map[string]models.AutoproxySettings),
		blacklists: make(map[string]models.Blacklist),
		webhooks:   make(map[string]models.WebhookCredentials),
	}
}

func (s *fakeStore) GetProfile(userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[userID], nil
}

func (s *fakeStore) SaveProfile(userID string, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
	return nil
}

func (s *fakeStore) DeleteProfile(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

func (s *fakeStore) AllProfiles() (map[string]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("store unavailable")
	}
	out := make(map[string]*models.Profile, len(s.profiles))
	for k, v := range s.profiles {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) GetAutoproxy(key string) (models.AutoproxySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok := s.autoproxy[key]; ok {
		return settings, nil
	}
	return models.AutoproxySettings{Mode: models.AutoproxyModeOff}, nil
}

func (s *fakeStore) SaveAutoproxy(key string, settings models.AutoproxySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoproxy[key] = settings
	return nil
}

func (s *fakeStore) AllAutoproxy() (map[string]models.AutoproxySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("store unavailable")
	}
	out := make(map[string]models.AutoproxySettings, len(s.autoproxy))
	for k, v := range s.autoproxy {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) GetBlacklist(guildID string) (models.Blacklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBlacklist {
		return models.Blacklist{}, errors.New("store unavailable")
	}
	return s.blacklists[guildID], nil
}

func (s *fakeStore) SaveBlacklist(guildID string, blacklist models.Blacklist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklists[guildID] = blacklist
	return nil
}

func (s *fakeStore) GetWebhook(channelID, guildID string) (*models.WebhookCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if creds, ok := s.webhooks[channelID+"_"+guildID]; ok {
		copied := creds
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveWebhook(creds models.WebhookCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[creds.ChannelID+"_"+creds.GuildID] = creds
	return nil
}

func (s *fakeStore) DeleteWebhook(channelID, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.webhooks, channelID+"_"+guildID)
	return nil
}

func (s *fakeStore) RecordSwitch(userID, alterName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switches = append(s.switches, models.SwitchRecord{UserID: userID, AlterName: alterName})
	return nil
}

func (s *fakeStore) RecentSwitches(userID string, limit int) ([]models.SwitchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SwitchRecord
	for i := len(s.switches) - 1; i >= 0 && len(out) < limit; i-- {
		if s.switches[i].UserID == userID {
			out = append(out, s.switches[i])
		}
	}
	return out, nil
}

// fakePlatform is an in-memory types.Platform that records every call.
type fakePlatform struct {
	mu sync.Mutex

	hasPerms bool
	permErr  error

	createCalls int
	createErr   error
	createHook  func()
	fetchCalls  int
	fetchErr    map[string]error

	sends     []types.SendParams
	sendErr   error
	nextMsgID int

	deleted  []string
	notices  []string
	payloads map[string][]byte
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		hasPerms: true,
		fetchErr: make(map[string]error),
		payloads: make(map[string][]byte),
	}
}

func (p *fakePlatform) HasProxyPermissions(channelID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasPerms, p.permErr
}

func (p *fakePlatform) CreateWebhook(channelID, guildID string) (*types.Webhook, error) {
	if p.createHook != nil {
		p.createHook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.createCalls++
	return &types.Webhook{
		ID:        fmt.Sprintf("hook-%d", p.createCalls),
		Token:     fmt.Sprintf("token-%d", p.createCalls),
		ChannelID: channelID,
		GuildID:   guildID,
	}, nil
}

func (p *fakePlatform) FetchWebhook(webhook *types.Webhook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	return p.fetchErr[webhook.ID]
}

func (p *fakePlatform) SendWebhookMessage(webhook *types.Webhook, params types.SendParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.sends = append(p.sends, params)
	p.nextMsgID++
	return fmt.Sprintf("sent-%d", p.nextMsgID), nil
}

func (p *fakePlatform) EditWebhookMessage(webhook *types.Webhook, messageID, content string) error {
	return nil
}

func (p *fakePlatform) DeleteMessage(channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *fakePlatform) SendMessage(channelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, content)
	return nil
}

func (p *fakePlatform) DownloadAttachment(url string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.payloads[url]
	if !ok {
		return nil, errors.New("download failed")
	}
	return data, nil
}

func (p *fakePlatform) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

func (p *fakePlatform) lastSend() types.SendParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sends[len(p.sends)-1]
}
