package server

import (
	"errors"
	"log/slog"
	"mime/multipart"

	"snapgram/internal/media"
	"snapgram/internal/middleware"
	"snapgram/internal/models"
	"snapgram/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// createPostRequest carries the caption from either a multipart form or a
// JSON body. The image only arrives as a multipart file.
type createPostRequest struct {
	Caption string `json:"caption" form:"caption"`
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Upload an image with a caption. JPEG and PNG up to 5MB.
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param caption formData string true "Caption"
// @Param image formData file true "Image"
// @Success 201 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req createPostRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	in := service.CreatePostInput{
		AuthorID: currentUserID(c),
		Caption:  req.Caption,
	}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		file, openErr := fh.Open()
		if openErr != nil {
			return mapServiceError(c, models.NewInternalError(openErr))
		}
		defer closeUpload(file)
		in.Image = &media.Upload{
			Reader:      file,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			OwnerID:     in.AuthorID,
			BaseURL:     c.BaseURL(),
		}
	case errors.Is(err, fasthttp.ErrMissingFile), errors.Is(err, fasthttp.ErrNoMultipartForm):
		// Left nil; the service reports the missing image.
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid multipart form"))
	}

	post, err := s.postService.CreatePost(ctx, in)
	if err != nil {
		return mapServiceError(c, err)
	}

	resp, err := s.presentPost(ctx, post)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func closeUpload(f multipart.File) {
	if err := f.Close(); err != nil {
		middleware.Logger.Warn("failed to close upload", slog.String("error", err.Error()))
	}
}

// GetFeed handles GET /api/posts/feed
// @Summary Feed
// @Description Posts by the caller and the users they follow, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} PostResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	posts, err := s.postService.Feed(ctx, currentUserID(c), parsePagination(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	resp, err := s.presentPosts(ctx, posts)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

// GetUserPosts handles GET /api/posts/user/:userId
// @Summary Posts by user
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/user/{userId} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	posts, err := s.postService.GetUserPosts(ctx, userID, parsePagination(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	resp, err := s.presentPosts(ctx, posts)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

// GetPost handles GET /api/posts/:postId
// @Summary Get post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	post, err := s.postService.GetPost(ctx, postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondPost(c, post)
}

// ToggleLike handles POST /api/posts/:postId/like
// @Summary Like or unlike
// @Description Adds the caller to the like set, or removes them if already present
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	post, err := s.postService.ToggleLike(c.UserContext(), postID, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondPost(c, post)
}

// AddComment handles POST /api/posts/:postId/comment
// @Summary Comment
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param request body object{text=string} true "Comment"
// @Success 200 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comment [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.AddComment(c.UserContext(), postID, currentUserID(c), req.Text)
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondPost(c, post)
}

// DeletePost handles DELETE /api/posts/:postId
// @Summary Delete post
// @Description Only the author may delete; anyone else gets the not-found response
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), postID, currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

func (s *Server) respondPost(c *fiber.Ctx, post *models.Post) error {
	resp, err := s.presentPost(c.UserContext(), post)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}
