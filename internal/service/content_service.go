package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/transfer"
)

var allowedMediaExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
}

const maxMediaSizeBytes = 500 * 1024 * 1024

var hashtagPools = map[string][]string{
	models.CategoryMotivation: {
		"#motivation", "#success", "#inspiration", "#mindset", "#goals",
		"#hustle", "#grind", "#nevergiveup", "#believe", "#entrepreneur",
		"#successmindset", "#dailymotivation", "#hardwork", "#determination",
	},
	models.CategoryLifestyle: {
		"#lifestyle", "#daily", "#life", "#mood", "#vibes", "#aesthetic",
		"#selfcare", "#wellness", "#balance", "#goodvibes", "#positive",
		"#happiness", "#mindfulness", "#cozy",
	},
	models.CategoryBusiness: {
		"#business", "#entrepreneur", "#startup", "#money", "#success",
		"#marketing", "#growth", "#leadership", "#investing", "#wealth",
		"#productivity", "#networking", "#innovation", "#strategy",
	},
	models.CategoryEntertainment: {
		"#entertainment", "#fun", "#viral", "#trending", "#funny", "#amazing",
		"#cool", "#awesome", "#incredible", "#epic", "#satisfying",
		"#interesting", "#creative", "#unique",
	},
}

var generalHashtags = []string{"#viral", "#trending", "#reels", "#explore", "#fyp", "#instagram", "#amazing"}

var captionTemplates = map[string][]string{
	models.CategoryMotivation: {
		"Every day is a new chance to level up.",
		"Success starts with the first step.",
		"Your dreams are waiting for action.",
		"Never give up, your time is coming.",
		"Turn obstacles into opportunities.",
	},
	models.CategoryLifestyle: {
		"Enjoy every moment.",
		"Life is beautiful in the small things.",
		"Find your balance.",
		"Create moments worth remembering.",
		"Good vibes, every day.",
	},
	models.CategoryBusiness: {
		"Build your empire.",
		"Success takes action, not words.",
		"Investing in yourself pays the best interest.",
		"Think big, act strategically.",
		"Create value and the rest follows.",
	},
	models.CategoryEntertainment: {
		"This is simply unreal.",
		"You have to see this one.",
		"Top-tier content, right here.",
		"This is going straight to trending.",
		"Can't believe my eyes.",
	},
}

var timeOfDayPhrases = map[string][]string{
	"morning":   {"Good morning! Start the day right.", "Your morning dose of energy.", "Great way to wake up."},
	"afternoon": {"Keeping the day going strong.", "Your afternoon boost.", "Stay productive out there."},
	"evening":   {"Winding the day down right.", "Evening inspiration for you.", "Ending the day on a high note."},
	"night":     {"Late night content for the night owls.", "For the ones still awake.", "Night time inspiration."},
}

var callToActions = []string{
	"Save this for later.",
	"Drop your thoughts in the comments.",
	"Double tap if you agree.",
	"Follow for more.",
	"Tag a friend who needs this.",
	"What do you think?",
}

type ContentService interface {
	ScanFolders(ctx context.Context) ([]*models.ContentFolder, error)
	PickUnusedMedia(ctx context.Context, folderID, accountID string) (string, error)
	GenerateCaption(category, mediaPath string) string
	UploadToPublicStorage(ctx context.Context, mediaPath string) (string, error)
	ValidateMediaFile(path string) (bool, string)
	Statistics(ctx context.Context) (*transfer.ContentStats, error)
}

type contentService struct {
	cfg     cfg.Config
	fr      repository.FolderRepository
	tr      repository.TaskRepository
	storage *StorageService
	rng     *rand.Rand
	now     func() time.Time
}

func NewContentService(config cfg.Config, fr repository.FolderRepository, tr repository.TaskRepository,
	storage *StorageService, rng *rand.Rand, now func() time.Time) ContentService {
	if now == nil {
		now = time.Now
	}
	return &contentService{cfg: config, fr: fr, tr: tr, storage: storage, rng: rng, now: now}
}

// ScanFolders walks the content directory and upserts a ContentFolder row per
// subdirectory that holds at least one valid media file.
func (s *contentService) ScanFolders(ctx context.Context) ([]*models.ContentFolder, error) {
	entries, err := os.ReadDir(s.cfg.ContentDir)
	if err != nil {
		slog.Warn("content directory not readable", "path", s.cfg.ContentDir, "err", err)
		return nil, err
	}

	var folders []*models.ContentFolder
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		folderPath := filepath.Join(s.cfg.ContentDir, entry.Name())
		mediaFiles, err := listMediaFiles(folderPath)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if len(mediaFiles) == 0 {
			continue
		}

		category := CategoryForFolderName(entry.Name())

		existing, err := s.fr.GetByPath(ctx, folderPath)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := s.fr.UpdateScan(ctx, existing.ID, category, len(mediaFiles)); err != nil {
				return nil, err
			}
			existing.TotalMedia = len(mediaFiles)
			existing.Category = category
			folders = append(folders, existing)
			continue
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, err
		}
		folder := &models.ContentFolder{
			ID:         "folder_" + id,
			Name:       entry.Name(),
			Path:       folderPath,
			TotalMedia: len(mediaFiles),
			Category:   category,
			IsActive:   true,
		}
		if _, err := s.fr.Create(ctx, folder); err != nil {
			return nil, err
		}
		slog.Info("content folder registered", "name", folder.Name, "media", folder.TotalMedia)
		folders = append(folders, folder)
	}

	return folders, nil
}

func listMediaFiles(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowedMediaExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(folderPath, entry.Name()))
		}
	}
	return files, nil
}

// CategoryForFolderName infers the caption category from the folder name.
func CategoryForFolderName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "motiv", "success", "inspire", "goal", "achieve"):
		return models.CategoryMotivation
	case containsAny(lower, "lifestyle", "life", "daily", "routine", "personal"):
		return models.CategoryLifestyle
	case containsAny(lower, "business", "money", "entrepreneur", "startup", "finance"):
		return models.CategoryBusiness
	default:
		return models.CategoryEntertainment
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// PickUnusedMedia returns a media file from the folder that the account has
// not yet posted. When every file has been used the full set becomes eligible
// again: the cycle restarts rather than starving the schedule. Empty string
// means the folder holds no media at all.
func (s *contentService) PickUnusedMedia(ctx context.Context, folderID, accountID string) (string, error) {
	folder, err := s.fr.GetByID(ctx, folderID)
	if err != nil {
		return "", err
	}
	if folder == nil {
		slog.Warn("content folder not found", "folder_id", folderID)
		return "", nil
	}

	mediaFiles, err := listMediaFiles(folder.Path)
	if err != nil {
		slog.Warn("content folder not readable", "path", folder.Path, "err", err)
		return "", nil
	}
	if len(mediaFiles) == 0 {
		return "", nil
	}

	usedPaths, err := s.tr.ListMediaUsedByAccount(ctx, accountID, folderID)
	if err != nil {
		return "", err
	}
	used := make(map[string]bool, len(usedPaths))
	for _, p := range usedPaths {
		used[p] = true
	}

	var available []string
	for _, f := range mediaFiles {
		if !used[f] {
			available = append(available, f)
		}
	}
	if len(available) == 0 {
		slog.Info("all media used, restarting cycle", "folder", folder.Name, "account_id", accountID)
		available = mediaFiles
	}

	return available[s.rng.Intn(len(available))], nil
}

// GenerateCaption composes a caption from the category template pool, a
// time-of-day phrase, and a shuffled hashtag set. The optional call-to-action
// line is keyed off the media path hash so it is stable per file.
func (s *contentService) GenerateCaption(category, mediaPath string) string {
	templates, ok := captionTemplates[category]
	if !ok {
		templates = captionTemplates[models.CategoryEntertainment]
	}
	base := templates[s.rng.Intn(len(templates))]

	phrase := s.timeOfDayPhrase()
	hashtags := s.generateHashtags(category)

	caption := fmt.Sprintf("%s\n\n%s\n\n%s", base, phrase, hashtags)

	sum := md5.Sum([]byte(mediaPath))
	hashInt, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	if hashInt%3 == 0 {
		caption += "\n\n" + callToActions[hashInt%uint64(len(callToActions))]
	}

	return caption
}

func (s *contentService) generateHashtags(category string) string {
	pool, ok := hashtagPools[category]
	if !ok {
		pool = hashtagPools[models.CategoryEntertainment]
	}

	nCategory := 4 + s.rng.Intn(3) // 4..6
	nGeneral := 2 + s.rng.Intn(3)  // 2..4

	tags := sampleStrings(s.rng, pool, nCategory)
	tags = append(tags, sampleStrings(s.rng, generalHashtags, nGeneral)...)

	s.rng.Shuffle(len(tags), func(i, j int) { tags[i], tags[j] = tags[j], tags[i] })
	if len(tags) > 10 {
		tags = tags[:10]
	}
	return strings.Join(tags, " ")
}

func sampleStrings(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	perm := rng.Perm(len(pool))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, pool[idx])
	}
	return out
}

func (s *contentService) timeOfDayPhrase() string {
	hour := s.now().Hour()
	var bucket string
	switch {
	case hour >= 6 && hour < 12:
		bucket = "morning"
	case hour >= 12 && hour < 18:
		bucket = "afternoon"
	case hour >= 18 && hour < 22:
		bucket = "evening"
	default:
		bucket = "night"
	}
	phrases := timeOfDayPhrases[bucket]
	return phrases[s.rng.Intn(len(phrases))]
}

// UploadToPublicStorage validates the file and pushes it to object storage,
// returning the public URL the remote platform will fetch.
func (s *contentService) UploadToPublicStorage(ctx context.Context, mediaPath string) (string, error) {
	if ok, reason := s.ValidateMediaFile(mediaPath); !ok {
		return "", fmt.Errorf("invalid media file %s: %s", mediaPath, reason)
	}

	sum := md5.Sum([]byte(mediaPath))
	key := "media/" + hex.EncodeToString(sum[:])
	return s.storage.Upload(ctx, key, mediaPath)
}

func (s *contentService) ValidateMediaFile(path string) (bool, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, "file does not exist"
	}
	if !allowedMediaExtensions[strings.ToLower(filepath.Ext(path))] {
		return false, fmt.Sprintf("unsupported format %s", filepath.Ext(path))
	}
	if info.Size() > maxMediaSizeBytes {
		return false, fmt.Sprintf("file too large: %.1fMB", float64(info.Size())/(1024*1024))
	}
	if info.Size() < 1024 {
		return false, "file too small"
	}
	return true, "OK"
}

func (s *contentService) Statistics(ctx context.Context) (*transfer.ContentStats, error) {
	folders, err := s.fr.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &transfer.ContentStats{Categories: make(map[string]int)}
	for _, f := range folders {
		stats.TotalFolders++
		if f.IsActive {
			stats.ActiveFolders++
		}
		stats.TotalMedia += f.TotalMedia
		stats.UsedMedia += f.UsedMedia
		stats.Categories[f.Category]++
	}
	return stats, nil
}
