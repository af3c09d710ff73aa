package iocli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	s := NewStreams(strings.NewReader(""), &out)

	s.Println("hello", "world")
	s.Printf("test %d %s", 1, "abc")
	_, err := s.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

// Тест ReadInput: читаем из pipe вместо os.Stdin
func TestReadInput(t *testing.T) {
	input := "user input\n"
	r, w, err := os.Pipe()
	require.NoError(t, err)

	// Пишем в pipe в отдельной горутине, имитируя ввод пользователя
	go func() {
		_, _ = w.Write([]byte(input))
		_ = w.Close()
	}()

	var out bytes.Buffer
	s := NewStreams(r, &out)
	result, err := s.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(input), result)
	assert.Equal(t, "Prompt: ", out.String())
}

func TestReadInput_LastLineWithoutNewline(t *testing.T) {
	s := NewStreams(strings.NewReader("first\nlast"), &bytes.Buffer{})

	first, err := s.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "first", first)

	last, err := s.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "last", last)

	_, err = s.ReadInput("")
	assert.Error(t, err)
}

// Не терминал: пароль читается как обычная строка
func TestReadPassword_NotTerminal(t *testing.T) {
	s := NewStreams(strings.NewReader("secret123\n"), &bytes.Buffer{})

	pw, err := s.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret123", pw)
}

func TestNewLogger_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))

	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("Mutation queued", "op_id", "op-1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Mutation queued", record["msg"])
	assert.Equal(t, "op-1", record["op_id"])
}
