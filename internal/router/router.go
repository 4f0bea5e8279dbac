package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/handler"
)

const sessionName = "studentpulse_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret, uploadDir, uploadURL string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(api.Metrics().Middleware())

	// 头像等上传文件
	uploadURL = "/" + strings.Trim(strings.TrimSpace(uploadURL), "/")
	if uploadDir != "" && uploadURL != "/" {
		r.Static(uploadURL, uploadDir)
		if uploadURL != "/uploads" {
			r.Static("/uploads", uploadDir)
		}
	}

	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", gin.WrapH(api.MetricsHandler()))

	r.POST("/api/auth/login", api.Login)
	r.POST("/api/auth/logout", api.Logout)

	authed := r.Group("/api")
	authed.Use(api.AuthRequired())
	{
		authed.GET("/me", api.Me)
		authed.POST("/auth/token", api.IssueToken)
		authed.POST("/predict-risk", api.PredictRisk)
		authed.GET("/notices", api.ListNotices)

		student := authed.Group("/students/:id")
		student.Use(api.StudentAccess())
		{
			student.GET("/dashboard", api.GetDashboard)
			student.GET("/profile", api.GetProfile)
			student.PATCH("/profile", api.UpdateProfile)
			student.POST("/profile/photo", api.UploadProfilePhoto)
			student.GET("/export", api.ExportSnapshot)

			student.GET("/checkins", api.ListCheckIns)
			student.POST("/checkins", api.SubmitCheckIn)

			student.GET("/assignments", api.ListAssignments)
			student.POST("/assignments", api.CreateAssignment)
			student.PUT("/assignments/:assignmentId", api.UpdateAssignment)
			student.DELETE("/assignments/:assignmentId", api.DeleteAssignment)
			student.POST("/assignments/:assignmentId/toggle", api.ToggleAssignment)
			student.GET("/goals", api.GetGoals)
			student.PUT("/goals", api.UpdateWeeklyTarget)

			student.GET("/reflections", api.ListReflections)
			student.POST("/reflections", api.SaveReflection)
			student.GET("/focus-sessions", api.ListFocusSessions)
			student.POST("/focus-sessions", api.RecordFocusSession)
			student.GET("/schedule", api.GetSchedule)
			student.GET("/streaks", api.GetStreaks)
			student.POST("/streaks/attendance", api.MarkAttendance)
			student.POST("/schedule", api.AddScheduleItem)

			student.POST("/prediction", api.PredictStudentRisk)
			student.GET("/prediction", api.GetPredictionState)
			student.GET("/prediction/latest", api.GetLatestAssessment)
		}

		staff := authed.Group("")
		staff.Use(api.RequireRole(db.RoleCounsellor))
		{
			staff.GET("/students", api.ListStudents)
			staff.GET("/students/:id/analytics", api.GetStudentAnalytics)
			staff.GET("/students/:id/interventions", api.ListInterventions)

			staff.GET("/erp/students", api.ListERPStudents)
			staff.GET("/erp/students/at-risk", api.ListERPAtRisk)
			staff.GET("/erp/students/:erpId/subjects", api.ListERPSubjects)
		}

		mentor := authed.Group("/mentor")
		mentor.Use(api.RequireRole(db.RoleMentor))
		{
			mentor.GET("/students", api.ListMentorStudents)
			mentor.POST("/students", api.AssignMentorStudent)
			mentor.DELETE("/students/:id", api.RemoveMentorStudent)
			mentor.POST("/students/:id/interventions", api.RecordIntervention)
		}

		admin := authed.Group("/admin")
		admin.Use(api.RequireRole(db.RoleAdmin))
		{
			admin.GET("/users", api.ListUsers)
			admin.POST("/users", api.CreateUser)
			admin.PUT("/users/:userId/role", api.SetUserRole)
			admin.GET("/roles", api.ListRoles)

			admin.GET("/settings", api.GetSystemSettings)
			admin.PUT("/settings", api.UpdateSystemSettings)
			admin.POST("/settings/ai-test", api.TestAIConnection)

			admin.POST("/students/import", api.ImportSnapshot)
			admin.POST("/analytics/attendance", api.IngestAttendance)
			admin.POST("/analytics/marks", api.IngestMarks)

			admin.GET("/directory/users", api.ListDirectoryUsers)
			admin.POST("/directory/users", api.CreateDirectoryUser)
			admin.GET("/directory/users/:userId", api.GetDirectoryUser)
			admin.PUT("/directory/users/:userId", api.UpdateDirectoryUser)
			admin.DELETE("/directory/users/:userId", api.DeleteDirectoryUser)
		}
	}

	return r
}
