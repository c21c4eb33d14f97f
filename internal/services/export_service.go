package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

// ExportService produces downloadable reports for finished arena sessions and
// a user's exam history.
type ExportService interface {
	ExportSessionResultsToExcel(ctx context.Context, sessionID string) ([]byte, error)
	ExportSessionResultsToCSV(ctx context.Context, sessionID string) ([]byte, error)
	ExportExamHistoryToExcel(ctx context.Context, userID string) ([]byte, error)
}

type exportService struct {
	repo   repositories.Repository
	arena  ArenaService
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, arena ArenaService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		arena:  arena,
		logger: logger,
	}
}

var sessionResultHeaders = []string{
	"Rank", "User ID", "Score", "Correct", "Wrong", "Best Streak", "Joined At",
}

func (s *exportService) sessionResultRows(ctx context.Context, sessionID string) (*models.ArenaSession, [][]string, error) {
	session, err := s.arena.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, nil, NewConflictError("arena_session", sessionID, "results export requires a completed session")
	}

	leaderboard, err := s.arena.Leaderboard(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]string, 0, len(leaderboard))
	for _, p := range leaderboard {
		rows = append(rows, []string{
			strconv.Itoa(p.Rank),
			p.UserID,
			strconv.Itoa(p.Score),
			strconv.Itoa(p.CorrectAnswers),
			strconv.Itoa(p.WrongAnswers),
			strconv.Itoa(p.BestStreak),
			p.JoinedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return session, rows, nil
}

func (s *exportService) ExportSessionResultsToExcel(ctx context.Context, sessionID string) ([]byte, error) {
	session, rows, err := s.sessionResultRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, header := range sessionResultHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}
	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	s.logger.Info("Exported session results",
		"session_id", sessionID,
		"title", session.Title,
		"rows", len(rows))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *exportService) ExportSessionResultsToCSV(ctx context.Context, sessionID string) ([]byte, error) {
	_, rows, err := s.sessionResultRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if err := writer.Write(sessionResultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return []byte(sb.String()), nil
}

func (s *exportService) ExportExamHistoryToExcel(ctx context.Context, userID string) ([]byte, error) {
	attempts, _, err := s.repo.Exam().GetByUser(ctx, userID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to load exam history: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Exam History"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Attempt ID", "Exam Type", "Difficulty", "Score", "Max Score", "Band", "CEFR Level", "Completed At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		band := ""
		if attempt.BandScore != nil {
			band = strconv.FormatFloat(*attempt.BandScore, 'f', 1, 64)
		}
		level := ""
		if attempt.CEFRLevel != nil {
			level = *attempt.CEFRLevel
		}
		row := []string{
			attempt.ID,
			string(attempt.ExamType),
			string(attempt.Difficulty),
			strconv.FormatFloat(attempt.Score, 'f', 1, 64),
			strconv.FormatFloat(attempt.MaxScore, 'f', 1, 64),
			band,
			level,
			attempt.CompletedAt.Format("2006-01-02 15:04:05"),
		}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
